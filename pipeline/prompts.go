package pipeline

import "fmt"

const summarizerSystemPrompt = "You are a professional summarizer. Always respond with ONLY valid JSON."

const chunkSystemPrompt = "Summarize this section briefly in 2-3 sentences."

const quizSystemPrompt = "You are a professional quiz creator. Always respond with ONLY valid JSON, no markdown."

func directSummaryPrompt(text string) string {
	return fmt.Sprintf(`You are an expert document summarizer. Analyze the following document and provide:
1. A concise summary (3-5 sentences)
2. 5-7 key points as a bulleted list

Document:
%s

Respond in this exact JSON format ONLY:
{
  "summary": "your summary here",
  "key_points": ["point 1", "point 2", "point 3", "point 4", "point 5"]
}`, text)
}

func aggregateSummaryPrompt(sectionSummaries string) string {
	return fmt.Sprintf(`Based on these section summaries, create:
1. A comprehensive overall summary (3-5 sentences)
2. 5-7 key points for the entire document

Section Summaries:
%s

Respond in this exact JSON format ONLY:
{
  "summary": "comprehensive summary here",
  "key_points": ["point 1", "point 2", ...]
}`, sectionSummaries)
}

func directQuizPrompt(text string) string {
	return fmt.Sprintf(`You are an expert quiz creator. Based on the following content, create a comprehensive quiz with 5-7 questions.

For each question:
1. Create a clear, well-formulated question
2. Provide 4 multiple choice options (A, B, C, D)
3. Indicate which option is the correct answer
4. Provide a brief explanation of why it's correct

Content:
%s

Respond in this EXACT JSON format ONLY:
{
  "questions": [
    {
      "id": 1,
      "question": "Question text here?",
      "options": {
        "A": "Option A text",
        "B": "Option B text",
        "C": "Option C text",
        "D": "Option D text"
      },
      "correct_answer": "A",
      "explanation": "Why A is correct..."
    }
  ]
}`, text)
}

func sectionQuizPrompt(sections string) string {
	return fmt.Sprintf(`You are an expert quiz creator. Based on the following document sections, create a quiz with 5-7 questions covering the main concepts.

For each question, provide 4 multiple choice options (A, B, C, D) and mark the correct answer.

Document Sections:
%s

Respond in this EXACT JSON format ONLY:
{
  "questions": [
    {
      "id": 1,
      "question": "Question text?",
      "options": {
        "A": "Option A",
        "B": "Option B",
        "C": "Option C",
        "D": "Option D"
      },
      "correct_answer": "A",
      "explanation": "Explanation..."
    }
  ]
}`, sections)
}
