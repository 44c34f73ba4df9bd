// Package bulk parses the pipe-delimited question format admins paste in:
//
//	question|option1|option2|option3|option4|correctIndex|explanation|marks
//
// explanation and marks are optional; everything before them is required.
// Parsing is strict: a wrong field count or a bad index fails with the
// line number instead of silently skipping.
package bulk

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"smartquiz-service/internal/domain"
)

const (
	minFields = 6
	maxFields = 8
	// optionCount is fixed by the import format; variable option counts
	// come in through the structured API instead.
	optionCount = 4
)

// ParseError pinpoints the first offending line.
type ParseError struct {
	Line   int
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

// Parse reads pipe-delimited questions, one per line. Blank lines are
// skipped; any malformed line aborts the whole import.
func Parse(r io.Reader) ([]domain.Question, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var questions []domain.Question
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		q, err := parseLine(line)
		if err != nil {
			return nil, &ParseError{Line: lineNo, Reason: err.Error()}
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(questions) == 0 {
		return nil, &ParseError{Line: lineNo, Reason: "no questions found"}
	}
	return questions, nil
}

func parseLine(line string) (domain.Question, error) {
	parts := strings.Split(line, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < minFields || len(parts) > maxFields {
		return domain.Question{}, fmt.Errorf("expected %d-%d pipe-separated fields, got %d", minFields, maxFields, len(parts))
	}

	text := parts[0]
	if text == "" {
		return domain.Question{}, fmt.Errorf("question text is empty")
	}

	options := parts[1 : 1+optionCount]
	for i, opt := range options {
		if opt == "" {
			return domain.Question{}, fmt.Errorf("option %d is empty", i+1)
		}
	}

	correct, err := strconv.Atoi(parts[5])
	if err != nil {
		return domain.Question{}, fmt.Errorf("correct answer index %q is not a number", parts[5])
	}

	q := domain.Question{
		Text:         text,
		Options:      append([]string(nil), options...),
		CorrectIndex: correct,
	}
	if len(parts) >= 7 {
		q.Explanation = parts[6]
	}
	if len(parts) == 8 && parts[7] != "" {
		marks, err := strconv.ParseFloat(parts[7], 64)
		if err != nil {
			return domain.Question{}, fmt.Errorf("marks %q is not a number", parts[7])
		}
		q.Marks = marks
	}

	if err := q.Validate(); err != nil {
		return domain.Question{}, err
	}
	return q, nil
}
