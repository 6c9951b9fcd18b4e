package comms_test

import (
	"context"
	"errors"
	"testing"

	"github.com/synnaxlabs/synnax-sub025/pkg/aether"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms"
	"github.com/synnaxlabs/synnax-sub025/pkg/comms/commstest"
)

func TestPipe(t *testing.T) {
	a, b := comms.Pipe()
	commstest.TestConn(t, a, b)
}

func TestPipe_SendAfterClose(t *testing.T) {
	a, b := comms.Pipe()
	b.Close()
	<-a.Done()
	if err := a.Send(context.Background(), aether.Update{}); !errors.Is(err, comms.ErrClosed) {
		t.Errorf("Send after close -> %v, want ErrClosed", err)
	}
}
