package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AddQuestion inserts a template question and fills in its ID.
func (s *Store) AddQuestion(ctx context.Context, q *Question) error {
	if q.Template == "" {
		q.Template = DefaultTemplate
	}
	if q.Type == "" {
		q.Type = QuestionText
	}
	options, err := encodeList(q.Options)
	if err != nil {
		return fmt.Errorf("encode options: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO questions (template, section, section_order, text, type, mandatory, options, display_order)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		q.Template, q.Section, q.SectionOrder, q.Text, q.Type, q.Mandatory,
		options, q.DisplayOrder,
	)
	if err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.ID, _ = res.LastInsertId()
	return nil
}

// Template returns a template's questions in section then display order.
func (s *Store) Template(ctx context.Context, name string) ([]Question, error) {
	if name == "" {
		name = DefaultTemplate
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, template, section, section_order, text, type, mandatory, options, display_order
		 FROM questions WHERE template = ? ORDER BY section_order, display_order, id`,
		name,
	)
	if err != nil {
		return nil, fmt.Errorf("get template: %w", err)
	}
	defer rows.Close()

	var questions []Question
	for rows.Next() {
		var q Question
		var options string
		if err := rows.Scan(&q.ID, &q.Template, &q.Section, &q.SectionOrder, &q.Text, &q.Type,
			&q.Mandatory, &options, &q.DisplayOrder); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		if q.Options, err = decodeList(options); err != nil {
			return nil, fmt.Errorf("question %d options: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

// SaveAnswer records (or replaces) the answer set for one question.
func (s *Store) SaveAnswer(ctx context.Context, a *Answer) error {
	if a.UpdatedAt.IsZero() {
		a.UpdatedAt = time.Now().UTC()
	}
	text, err := encodeAnswerSet(a.Values)
	if err != nil {
		return fmt.Errorf("encode answer: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answers (case_id, question_id, answer_text, updated_by, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(case_id, question_id) DO UPDATE SET
		   answer_text = excluded.answer_text,
		   updated_by = excluded.updated_by,
		   updated_at = excluded.updated_at`,
		a.CaseID, a.QuestionID, text, a.UpdatedBy, a.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save answer: %w", err)
	}
	return nil
}

// Answers returns a case's recorded answers keyed by question ID.
func (s *Store) Answers(ctx context.Context, caseID int64) (map[int64]AnswerSet, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT question_id, answer_text FROM answers WHERE case_id = ?`, caseID)
	if err != nil {
		return nil, fmt.Errorf("get answers: %w", err)
	}
	defer rows.Close()

	answers := map[int64]AnswerSet{}
	for rows.Next() {
		var qid int64
		var text string
		if err := rows.Scan(&qid, &text); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		set, err := decodeAnswerSet(text)
		if err != nil {
			return nil, fmt.Errorf("answer to question %d: %w", qid, err)
		}
		answers[qid] = set
	}
	return answers, rows.Err()
}

// encodeAnswerSet is the storage form of an answer set: a JSON array of
// the trimmed, non-empty values. An empty set is stored as "".
func encodeAnswerSet(set AnswerSet) (string, error) {
	var values []string
	for _, v := range set {
		if v = strings.TrimSpace(v); v != "" {
			values = append(values, v)
		}
	}
	return encodeList(values)
}

func decodeAnswerSet(text string) (AnswerSet, error) {
	values, err := decodeList(text)
	if err != nil || len(values) == 0 {
		return nil, err
	}
	return NewAnswerSet(values...), nil
}

// encodeList stores a string list as a JSON array, or "" when empty.
func encodeList(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	data, err := json.Marshal(values)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeList(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal([]byte(text), &values); err != nil {
		return nil, err
	}
	return values, nil
}
