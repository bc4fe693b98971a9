package cli

import (
	"fmt"
	"io"
	"strings"
)

// readPromptLine reads until either LF or CR so Enter works in normal and
// raw terminal modes.
func readPromptLine(in io.Reader) (string, error) {
	if in == nil {
		return "", io.EOF
	}

	var buf []byte
	var one [1]byte
	for {
		n, err := in.Read(one[:])
		if n > 0 {
			switch one[0] {
			case '\n', '\r':
				return string(buf), nil
			default:
				buf = append(buf, one[0])
			}
		}
		if err != nil {
			if err == io.EOF && len(buf) > 0 {
				return string(buf), nil
			}
			return string(buf), err
		}
	}
}

// promptLine prints message and returns the trimmed answer.
func promptLine(in io.Reader, out io.Writer, message string) (string, error) {
	if out != nil {
		fmt.Fprint(out, message)
	}
	text, err := readPromptLine(in)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// promptChoice asks until the answer's first letter is one of choices. An
// empty answer returns def.
func promptChoice(in io.Reader, out io.Writer, message string, choices string, def byte) (byte, error) {
	for {
		text, err := promptLine(in, out, message)
		if err != nil {
			return 0, err
		}
		if text == "" {
			return def, nil
		}
		c := strings.ToLower(text)[0]
		if strings.IndexByte(choices, c) >= 0 {
			return c, nil
		}
		fmt.Fprintf(out, "Please answer one of %s.\n", strings.Join(strings.Split(choices, ""), "/"))
	}
}
