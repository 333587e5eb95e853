package report

import (
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/rf"
)

// RunArtifacts renders the report bundle for one saved run into its run
// directory: report.html plus one PNG per non-empty trace. Failures are
// logged and swallowed; the run's verdict and ledger entry are already
// durable by the time this is called.
func RunArtifacts(dir string, run *eval.Run, s11, s21 []rf.Sample) {
	htmlPath := filepath.Join(dir, "report.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		log.Printf("[Report] create %s: %v", htmlPath, err)
	} else {
		if err := RenderHTML(f, run, s11, s21); err != nil {
			log.Printf("[Report] %v", err)
		}
		f.Close()
	}

	for _, t := range []struct {
		param rf.Parameter
		trace []rf.Sample
	}{
		{rf.ParamS11, s11},
		{rf.ParamS21, s21},
	} {
		if len(t.trace) == 0 {
			continue
		}
		png := filepath.Join(dir, fmt.Sprintf("trace_%s.png", t.param))
		if err := SaveTracePNG(png, t.param, t.trace, run); err != nil {
			log.Printf("[Report] %v", err)
		}
	}
}
