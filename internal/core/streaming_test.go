package core

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"
)

func TestBOMSkippingReader(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "file with BOM",
			input:    append([]byte{0xEF, 0xBB, 0xBF}, []byte("hello,world")...),
			expected: "hello,world",
		},
		{
			name:     "file without BOM",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "empty file",
			input:    []byte{},
			expected: "",
		},
		{
			name:     "only BOM",
			input:    []byte{0xEF, 0xBB, 0xBF},
			expected: "",
		},
		{
			name:     "partial BOM at start",
			input:    []byte{0xEF, 0xBB, 'a', 'b', 'c'},
			expected: string([]byte{0xEF, 0xBB, 'a', 'b', 'c'}),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewBOMSkippingReader(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestStreamingUTF8Sanitizer(t *testing.T) {
	tests := []struct {
		name     string
		input    []byte
		expected string
	}{
		{
			name:     "valid ASCII",
			input:    []byte("hello,world"),
			expected: "hello,world",
		},
		{
			name:     "valid UTF-8 with multibyte",
			input:    []byte("Müller,Zoë"),
			expected: "Müller,Zoë",
		},
		{
			name:     "invalid single byte replaced",
			input:    []byte{'h', 'e', 0x80, 'l', 'o'},
			expected: "he?lo", // Invalid byte replaced with ?
		},
		{
			name:     "empty input",
			input:    []byte{},
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := NewStreamingUTF8Sanitizer(bytes.NewReader(tt.input))
			result, err := io.ReadAll(reader)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if string(result) != tt.expected {
				t.Errorf("got %q, want %q", string(result), tt.expected)
			}
		})
	}
}

func TestWrapForStreaming(t *testing.T) {
	input := append([]byte{0xEF, 0xBB, 0xBF}, []byte{'h', 'e', 0x80, 'l', 'o'}...)

	result, err := io.ReadAll(WrapForStreaming(bytes.NewReader(input)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(result) != "he?lo" {
		t.Errorf("got %q, want %q", string(result), "he?lo")
	}
}

func TestReadComponentCSV(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		delimiter rune
		header    []string
		records   [][]string
	}{
		{
			name:      "comma separated with BOM",
			input:     "\ufeffPersonNumber,ActionCode\n1001,HIRE\n1002,HIRE\n",
			delimiter: ',',
			header:    []string{"PersonNumber", "ActionCode"},
			records:   [][]string{{"1001", "HIRE"}, {"1002", "HIRE"}},
		},
		{
			name:      "pipe separated ragged records",
			input:     "A|B|C\n1|2\n1|2|3|4\n",
			delimiter: '|',
			header:    []string{"A", "B", "C"},
			records:   [][]string{{"1", "2"}, {"1", "2", "3", "4"}},
		},
		{
			name:      "lazy quotes",
			input:     "Name\nsay \"hi\" there\n",
			delimiter: ',',
			header:    []string{"Name"},
			records:   [][]string{{`say "hi" there`}},
		},
		{
			name:      "header only",
			input:     "A,B\n",
			delimiter: ',',
			header:    []string{"A", "B"},
		},
		{
			name:      "empty",
			input:     "",
			delimiter: ',',
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			comp, err := ReadComponentCSV("Worker", strings.NewReader(tt.input), tt.delimiter)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if comp.Name != "Worker" {
				t.Errorf("Name = %q, want Worker", comp.Name)
			}
			if !reflect.DeepEqual(comp.Header, tt.header) {
				t.Errorf("Header = %q, want %q", comp.Header, tt.header)
			}
			if !reflect.DeepEqual(comp.Records, tt.records) {
				t.Errorf("Records = %q, want %q", comp.Records, tt.records)
			}
		})
	}
}

func TestReadComponentCSV_Invalid(t *testing.T) {
	// encoding/csv rejects a newline delimiter on the first read
	_, err := ReadComponentCSV("Worker", strings.NewReader("A,B\n1,2\n"), '\n')
	if !errors.Is(err, ErrInvalidCSV) {
		t.Fatalf("err = %v, want ErrInvalidCSV", err)
	}
	if !strings.Contains(err.Error(), "Worker") {
		t.Errorf("error should name the component: %v", err)
	}
}
