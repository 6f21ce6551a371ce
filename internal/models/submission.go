package models

import "time"

// Submission is a single student assignment upload. The tracking ID is the
// opaque token shown to the student for later status lookup; it is the
// record's primary key and never changes. FilePath is the stored blob name;
// FileURL is a signed download link minted per read and never persisted.
type Submission struct {
	TrackingID  string     `db:"tracking_id" json:"tracking_id"`
	StudentName string     `db:"student_name" json:"student_name"`
	ERP         string     `db:"erp" json:"erp"`
	Branch      string     `db:"branch" json:"branch"`
	Section     string     `db:"section" json:"section"`
	Subject     string     `db:"subject" json:"subject"`
	Description string     `db:"description" json:"description"`
	FilePath    string     `db:"file_path" json:"file_path,omitempty"`
	FileURL     string     `db:"-" json:"file_url"`
	SubmittedAt time.Time  `db:"submitted_at" json:"submitted_at"`
	Marks       *string    `db:"marks" json:"marks"`
	Remark      *string    `db:"remark" json:"remark"`
	GradedAt    *time.Time `db:"graded_at" json:"graded_at"`
}

// Graded reports whether the submission has been graded at least once.
func (s *Submission) Graded() bool {
	return s.GradedAt != nil
}
