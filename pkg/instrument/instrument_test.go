package instrument

import (
	"bytes"
	"context"
	"errors"
	"log"
	"strings"
	"testing"
)

func TestChild_ExtendsName(t *testing.T) {
	i := Noop.Child("tree").Child("plot")
	if i.Name != "noop.tree.plot" {
		t.Errorf("got %q, want %q", i.Name, "noop.tree.plot")
	}
}

func TestDebugf(t *testing.T) {
	var buf bytes.Buffer
	i := Noop
	i.Logger = log.New(&buf, "", 0)

	i.Debugf("hidden %d", 1)
	if buf.Len() != 0 {
		t.Errorf("Debugf wrote %q with Debug unset", buf.String())
	}
	i.Debug = true
	i.Debugf("shown %d", 2)
	if !strings.Contains(buf.String(), "shown 2") {
		t.Errorf("got %q, want debug output", buf.String())
	}
}

func TestStart_EndsWithAndWithoutError(t *testing.T) {
	ctx, end := Noop.Start(context.Background(), "dispatch")
	if ctx == nil {
		t.Fatal("Start returned nil context")
	}
	end(nil)
	_, end = Noop.Start(context.Background(), "dispatch")
	end(errors.New("boom"))
}
