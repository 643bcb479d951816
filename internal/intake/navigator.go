package intake

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// WriterNavigator announces the next route on w, prefixed with an optional
// base URL.
type WriterNavigator struct {
	w       io.Writer
	baseURL string
}

func NewWriterNavigator(w io.Writer, baseURL string) *WriterNavigator {
	return &WriterNavigator{w: w, baseURL: strings.TrimRight(baseURL, "/")}
}

func (n *WriterNavigator) Navigate(_ context.Context, route string) error {
	_, err := fmt.Fprintf(n.w, "next: %s%s\n", n.baseURL, route)
	return err
}
