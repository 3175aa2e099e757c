package smd

import (
	"strconv"

	"github.com/pkg/errors"
	"github.com/timtadh/lexmachine"
	"github.com/timtadh/lexmachine/machines"
)

const (
	TOKEN_NUMBER = iota
	TOKEN_STRING
	TOKEN_WORD
	TOKEN_NEWLINE
	TOKEN_COMMENT
)

var lexer *lexmachine.Lexer

func init() {
	lexer = lexmachine.NewLexer()
	lexer.Add([]byte(`[\+\-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][\+\-]?[0-9]+)?`), getToken(TOKEN_NUMBER))
	lexer.Add([]byte(`//[^\n]*`), getToken(TOKEN_COMMENT))
	lexer.Add([]byte(`"[^"\n]*"`), getToken(TOKEN_STRING))
	lexer.Add([]byte(`[^ \t\r\n"]+`), getToken(TOKEN_WORD))
	lexer.Add([]byte(`(\n|\r|\r\n)+`), getToken(TOKEN_NEWLINE))
	lexer.Add([]byte(`[ \t]+`), skip)
}

func getToken(tokenType int) lexmachine.Action {
	return func(s *lexmachine.Scanner, m *machines.Match) (interface{}, error) {
		return s.Token(tokenType, string(m.Bytes), m), nil
	}
}

func skip(scan *lexmachine.Scanner, match *machines.Match) (interface{}, error) {
	return nil, nil
}

// line is the tokens of one text line without comments
type line struct {
	Number int
	Tokens []*lexmachine.Token
}

func (l *line) Len() int {
	return len(l.Tokens)
}

func (l *line) Word(i int) string {
	if i >= len(l.Tokens) {
		return ""
	}
	return l.Tokens[i].Value.(string)
}

// Text returns token i with quotes removed
func (l *line) Text(i int) (string, error) {
	if i >= len(l.Tokens) {
		return "", errors.Errorf("Line %d: missing argument %d", l.Number, i)
	}
	tok := l.Tokens[i]
	s := tok.Value.(string)
	if tok.Type == TOKEN_STRING {
		return s[1 : len(s)-1], nil
	}
	return s, nil
}

func (l *line) Int(i int) (int, error) {
	s, err := l.Text(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		if f, ferr := strconv.ParseFloat(s, 32); ferr == nil {
			return int(f), nil
		}
		return 0, errors.Errorf("Line %d: expected integer, got %q", l.Number, s)
	}
	return v, nil
}

func (l *line) Float(i int) (float32, error) {
	s, err := l.Text(i)
	if err != nil {
		return 0, err
	}
	v, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, errors.Errorf("Line %d: expected number, got %q", l.Number, s)
	}
	return float32(v), nil
}

// Floats reads count numbers starting at token i
func (l *line) Floats(i, count int) ([]float32, error) {
	out := make([]float32, count)
	for j := range out {
		v, err := l.Float(i + j)
		if err != nil {
			return nil, err
		}
		out[j] = v
	}
	return out, nil
}

func tokenize(text []byte) ([]*line, error) {
	scanner, err := lexer.Scanner(text)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to create lexer scanner")
	}

	lines := make([]*line, 0, 64)
	current := &line{Number: 1}
	for Itok, err, eos := scanner.Next(); !eos; Itok, err, eos = scanner.Next() {
		if err != nil {
			return nil, errors.Wrapf(err, "Failed to parse token")
		}
		if Itok == nil {
			continue
		}
		tok := Itok.(*lexmachine.Token)

		switch tok.Type {
		case TOKEN_NEWLINE:
			if current.Len() != 0 {
				lines = append(lines, current)
			}
			current = &line{Number: tok.EndLine + 1}
		case TOKEN_COMMENT:
		default:
			if current.Len() == 0 {
				current.Number = tok.StartLine
			}
			current.Tokens = append(current.Tokens, tok)
		}
	}
	if current.Len() != 0 {
		lines = append(lines, current)
	}
	return lines, nil
}
