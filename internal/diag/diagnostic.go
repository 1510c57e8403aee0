package diag

import "fmt"

// Diagnostic is a single finding produced while preparing a run.
type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Subject  string // the reference or name the finding is about
	Notes    []string
}

// New builds a diagnostic.
func New(sev Severity, code Code, subject, msg string) *Diagnostic {
	return &Diagnostic{
		Severity: sev,
		Code:     code,
		Subject:  subject,
		Message:  msg,
	}
}

// NewError is a shortcut for SevError diagnostics.
func NewError(code Code, subject, msg string) *Diagnostic {
	return New(SevError, code, subject, msg)
}

// WithNote appends a note.
func (d *Diagnostic) WithNote(format string, args ...any) *Diagnostic {
	d.Notes = append(d.Notes, fmt.Sprintf(format, args...))
	return d
}

func (d *Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s %s: %s", d.Severity, d.Code.ID(), d.Message)
	}
	return fmt.Sprintf("%s %s: %s: %s", d.Severity, d.Code.ID(), d.Subject, d.Message)
}
