package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Reader decodes length-prefixed bulk-string framing from a stream
type Reader struct {
	r *bufio.Reader
}

// NewReader creates a protocol reader
func NewReader(r io.Reader) *Reader {
	return &Reader{r: bufio.NewReader(r)}
}

// ReadRequest reads one request: an array of bulk strings, verb first
func (r *Reader) ReadRequest() ([]string, error) {
	line, err := r.readLine()
	if err != nil {
		return nil, err
	}
	if len(line) == 0 {
		return nil, fmt.Errorf("empty request line")
	}
	if line[0] != '*' {
		// Inline command: whitespace-separated words
		return strings.Fields(line), nil
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return nil, fmt.Errorf("bad array length %q", line[1:])
	}
	args := make([]string, 0, n)
	for i := 0; i < n; i++ {
		s, err := r.readBulk()
		if err != nil {
			return nil, err
		}
		args = append(args, s)
	}
	return args, nil
}

// ReadValue reads one response value
func (r *Reader) ReadValue() (Value, error) {
	line, err := r.readLine()
	if err != nil {
		return Null(), err
	}
	if len(line) == 0 {
		return Null(), fmt.Errorf("empty response line")
	}
	switch line[0] {
	case '+':
		return NewString(line[1:]), nil
	case '-':
		code, msg, _ := strings.Cut(line[1:], " ")
		return NewErrorValue(&Error{Code: code, Message: msg}), nil
	case ':':
		n, err := strconv.ParseInt(line[1:], 10, 64)
		if err != nil {
			return Null(), fmt.Errorf("bad integer %q", line[1:])
		}
		return NewInt(n), nil
	case '$':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return Null(), fmt.Errorf("bad bulk length %q", line[1:])
		}
		if n < 0 {
			return Null(), nil
		}
		buf := make([]byte, n+2)
		if _, err := io.ReadFull(r.r, buf); err != nil {
			return Null(), err
		}
		return NewString(string(buf[:n])), nil
	case '*':
		n, err := strconv.Atoi(line[1:])
		if err != nil {
			return Null(), fmt.Errorf("bad array length %q", line[1:])
		}
		if n < 0 {
			return Null(), nil
		}
		arr := make([]Value, 0, n)
		for i := 0; i < n; i++ {
			v, err := r.ReadValue()
			if err != nil {
				return Null(), err
			}
			arr = append(arr, v)
		}
		return NewArray(arr...), nil
	default:
		return Null(), fmt.Errorf("unknown type prefix %q", line[0])
	}
}

func (r *Reader) readLine() (string, error) {
	line, err := r.r.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *Reader) readBulk() (string, error) {
	line, err := r.readLine()
	if err != nil {
		return "", err
	}
	if len(line) == 0 || line[0] != '$' {
		return "", fmt.Errorf("expected bulk string, got %q", line)
	}
	n, err := strconv.Atoi(line[1:])
	if err != nil || n < 0 {
		return "", fmt.Errorf("bad bulk length %q", line[1:])
	}
	buf := make([]byte, n+2)
	if _, err := io.ReadFull(r.r, buf); err != nil {
		return "", err
	}
	return string(buf[:n]), nil
}

// Writer encodes values onto a stream
type Writer struct {
	w *bufio.Writer
}

// NewWriter creates a protocol writer
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// WriteRequest encodes a request as an array of bulk strings
func (w *Writer) WriteRequest(args []string) error {
	fmt.Fprintf(w.w, "*%d\r\n", len(args))
	for _, a := range args {
		fmt.Fprintf(w.w, "$%d\r\n%s\r\n", len(a), a)
	}
	return w.w.Flush()
}

// WriteValue encodes one response value and flushes
func (w *Writer) WriteValue(v Value) error {
	if err := w.writeValue(v); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *Writer) writeValue(v Value) error {
	switch v.Kind {
	case KindNull:
		_, err := w.w.WriteString("$-1\r\n")
		return err
	case KindInt:
		_, err := fmt.Fprintf(w.w, ":%d\r\n", v.Int)
		return err
	case KindString:
		// Simple strings avoid framing overhead for short clean values;
		// anything with line breaks goes as a bulk string
		if v.Str == "OK" || v.Str == "PONG" {
			_, err := fmt.Fprintf(w.w, "+%s\r\n", v.Str)
			return err
		}
		_, err := fmt.Fprintf(w.w, "$%d\r\n%s\r\n", len(v.Str), v.Str)
		return err
	case KindError:
		_, err := fmt.Fprintf(w.w, "-%s %s\r\n", v.Err.Code, v.Err.Message)
		return err
	case KindArray:
		if _, err := fmt.Fprintf(w.w, "*%d\r\n", len(v.Arr)); err != nil {
			return err
		}
		for _, e := range v.Arr {
			if err := w.writeValue(e); err != nil {
				return err
			}
		}
		return nil
	case KindMap:
		// Maps flatten to key/value arrays on the wire
		if _, err := fmt.Fprintf(w.w, "*%d\r\n", len(v.Map)*2); err != nil {
			return err
		}
		for _, e := range v.Map {
			if err := w.writeValue(NewString(e.Key)); err != nil {
				return err
			}
			if err := w.writeValue(e.Value); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown value kind %d", v.Kind)
	}
}
