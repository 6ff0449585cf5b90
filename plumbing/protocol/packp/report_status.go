package packp

import (
	"fmt"
	"io"
	"strings"

	"github.com/go-git/git-engine/plumbing/format/pktline"
)

// CommandStatus is one per-ref outcome line of a push response.
type CommandStatus struct {
	ReferenceName string
	Status        string // "ok" or the ng reason
}

// Error reports the ng reason, or nil if the ref update succeeded.
func (s *CommandStatus) Error() error {
	if s.Status == "ok" {
		return nil
	}
	return fmt.Errorf("%s", s.Status)
}

// ReportStatus is a push response body: an overall
// unpack-status line, then one ok/ng line per requested ref update, under
// a side-band channel when report-status was negotiated alongside
// side-band.
type ReportStatus struct {
	UnpackStatus    string
	CommandStatuses []*CommandStatus
}

// NewReportStatus returns an empty ReportStatus.
func NewReportStatus() *ReportStatus { return &ReportStatus{} }

// Error returns the first ng reason found across UnpackStatus and every
// per-ref status, or nil if the whole push succeeded.
func (s *ReportStatus) Error() error {
	if s.UnpackStatus != "ok" {
		return fmt.Errorf("report-status: unpack error: %s", s.UnpackStatus)
	}
	for _, c := range s.CommandStatuses {
		if err := c.Error(); err != nil {
			return fmt.Errorf("report-status: command error on %s: %w", c.ReferenceName, err)
		}
	}
	return nil
}

// Decode parses the pkt-line encoded report-status message.
func (s *ReportStatus) Decode(r io.Reader) error {
	sc := pktline.NewScanner(r)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return err
		}
		return io.ErrUnexpectedEOF
	}
	line := strings.TrimSuffix(string(sc.Bytes()), "\n")
	if !strings.HasPrefix(line, "unpack ") {
		return fmt.Errorf("packp: malformed report-status: missing unpack line")
	}
	s.UnpackStatus = strings.TrimPrefix(line, "unpack ")

	for sc.Scan() {
		if sc.IsFlush() {
			return nil
		}
		line := strings.TrimSuffix(string(sc.Bytes()), "\n")
		switch {
		case strings.HasPrefix(line, "ok "):
			s.CommandStatuses = append(s.CommandStatuses, &CommandStatus{
				ReferenceName: strings.TrimPrefix(line, "ok "),
				Status:        "ok",
			})
		case strings.HasPrefix(line, "ng "):
			rest := strings.TrimPrefix(line, "ng ")
			parts := strings.SplitN(rest, " ", 2)
			cs := &CommandStatus{ReferenceName: parts[0]}
			if len(parts) == 2 {
				cs.Status = parts[1]
			} else {
				cs.Status = "unknown error"
			}
			s.CommandStatuses = append(s.CommandStatuses, cs)
		default:
			return fmt.Errorf("packp: malformed report-status line %q", line)
		}
	}
	return sc.Err()
}

// Encode writes the report-status message, as a receive-pack server would.
func (s *ReportStatus) Encode(w io.Writer) error {
	if _, err := pktline.WritePacketln(w, "unpack "+s.UnpackStatus); err != nil {
		return err
	}
	for _, c := range s.CommandStatuses {
		line := "ok " + c.ReferenceName
		if c.Status != "ok" {
			line = "ng " + c.ReferenceName + " " + c.Status
		}
		if _, err := pktline.WritePacketln(w, line); err != nil {
			return err
		}
	}
	return pktline.WriteFlush(w)
}
