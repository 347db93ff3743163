package ir_test

import (
	"bytes"
	"strings"
	"testing"

	"copyir/internal/ir"
)

func TestDumpListsLiveNodes(t *testing.T) {
	f := newCopyFixture(t)
	var buf bytes.Buffer
	if err := ir.Dump(&buf, f.g); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"graph fixture (nodes=8)",
		"ArrayCopy<generic> #1",
		"Param #0 src!",
		"kill=any",
		"ctl=n1, mem=n1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
}
