package queue

import (
	"database/sql"
)

// JobScanArgs holds all the variables needed for scanning a job from a database row.
type JobScanArgs struct {
	HandlerName sql.NullString
	Payload     sql.NullString
	Result      sql.NullString
	ErrorMsg    sql.NullString
	StartedAt   sql.NullTime
	CompletedAt sql.NullTime
}

// GetJobScanArgs returns a JobScanArgs struct with all variables ready for scanning
func GetJobScanArgs() *JobScanArgs {
	return &JobScanArgs{}
}

// GetJobScanTargets returns a slice of interface{} pointers for the job and scan args,
// in the order expected by the standard job SELECT query
func GetJobScanTargets(job *Job, args *JobScanArgs) []interface{} {
	return []interface{}{
		&job.ID,
		&args.HandlerName,
		&job.Source,
		&job.UserID,
		&job.Status,
		&args.Result,
		&args.ErrorMsg,
		&args.Payload,
		&job.CreatedAt,
		&args.StartedAt,
		&args.CompletedAt,
		&job.UpdatedAt,
	}
}

// ProcessJobScanArgs processes the scanned arguments and populates the job struct.
func ProcessJobScanArgs(job *Job, args *JobScanArgs) error {
	if args.HandlerName.Valid {
		job.HandlerName = args.HandlerName.String
	}

	// Payload and result are raw JSON, no unmarshaling needed
	if args.Payload.Valid {
		job.Payload = []byte(args.Payload.String)
	}
	if args.Result.Valid {
		job.Result = []byte(args.Result.String)
	}

	if args.ErrorMsg.Valid {
		job.Error = args.ErrorMsg.String
	}
	if args.StartedAt.Valid {
		job.StartedAt = &args.StartedAt.Time
	}
	if args.CompletedAt.Valid {
		job.CompletedAt = &args.CompletedAt.Time
	}

	return nil
}

// ScanJobFromRows scans a single job from sql.Rows (for use in loops)
func ScanJobFromRows(rows *sql.Rows, job *Job) error {
	args := GetJobScanArgs()
	targets := GetJobScanTargets(job, args)

	if err := rows.Scan(targets...); err != nil {
		return err
	}

	return ProcessJobScanArgs(job, args)
}

// StandardJobSelectColumns returns the standard column list for job SELECT queries
func StandardJobSelectColumns() string {
	return `id, handler_name, source, user_id, status,
		result, error, payload,
		created_at, started_at, completed_at, updated_at`
}
