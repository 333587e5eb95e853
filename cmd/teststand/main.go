// Command teststand runs filter test sweeps against a loaded test spec,
// records verdicts into per-lot ledgers and logs, and queries the
// cross-lot run archive.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rfbench/teststand/internal/device"
	"github.com/rfbench/teststand/internal/eval"
	"github.com/rfbench/teststand/internal/history"
	"github.com/rfbench/teststand/internal/lot"
	"github.com/rfbench/teststand/internal/report"
	"github.com/rfbench/teststand/internal/rf"
	"github.com/rfbench/teststand/internal/spec"
)

const usage = `usage: teststand <command> [flags]

commands:
  run       evaluate a sweep against a spec and record it into a lot
  lot-new   create a lot, freezing the active spec checksum
  lots      list lots and their yield
  history   list a lot's archived runs
  stats     per-rule margin statistics for a lot
  report    re-render the HTML/PNG report for an archived run
  golden    designate a lot's golden-reference run
  ports     list candidate analyzer serial ports
`

func main() {
	log.SetFlags(log.LstdFlags)

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(os.Args[2:])
	case "lot-new":
		err = cmdLotNew(os.Args[2:])
	case "lots":
		err = cmdLots(os.Args[2:])
	case "history":
		err = cmdHistory(os.Args[2:])
	case "stats":
		err = cmdStats(os.Args[2:])
	case "report":
		err = cmdReport(os.Args[2:])
	case "golden":
		err = cmdGolden(os.Args[2:])
	case "ports":
		err = cmdPorts(os.Args[2:])
	case "-h", "--help", "help":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", os.Args[1], usage)
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("teststand %s: %v", os.Args[1], err)
	}
}

func cmdRun(args []string) error {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	specPath := fs.String("spec", "", "test spec JSON file")
	lotName := fs.String("lot", "", "lot to record into")
	pcbLot := fs.String("pcb-lot", "", "PCB lot identifier")
	serial := fs.String("serial", "", "unit serial number (blank for anonymous)")
	s11Path := fs.String("s11", "", "S11 trace CSV")
	s21Path := fs.String("s21", "", "S21 trace CSV")
	port := fs.String("port", "", "require this serial port to be present")
	calibrated := fs.Bool("calibrated", false, "confirm the analyzer calibration has been applied")
	skipDevice := fs.Bool("skip-device-check", false, "run without probing for the analyzer")
	historyPath := fs.String("history", "", "run archive database (default <dir>/history.db)")
	fs.Parse(args)

	var ts *spec.TestSpec
	if *specPath != "" {
		var err error
		ts, err = spec.Load(*specPath)
		if err != nil {
			return err
		}
	}

	store := lot.NewStore(*workDir)
	var l *lot.Lot
	if *lotName != "" {
		var err error
		l, err = store.Load(*lotName)
		if err != nil {
			return err
		}
	}

	devicePresent := true
	if !*skipDevice {
		present, err := device.Present(*port)
		if err != nil {
			return err
		}
		devicePresent = present
	}

	pre := lot.Preconditions{
		LotSelected:   l != nil,
		PCBLotSet:     *pcbLot != "",
		SpecLoaded:    ts != nil,
		Calibrated:    *calibrated,
		DevicePresent: devicePresent,
	}
	if !pre.OK() {
		return fmt.Errorf("not ready to run: %s", strings.Join(pre.Unmet(), "; "))
	}

	// Spec drift is a warning, never a gate.
	if m := l.CheckSpecChecksum(ts.Checksum); m != nil {
		log.Printf("[Spec] %s", m.Warning())
	}

	s11, err := rf.LoadTraceFile(*s11Path)
	if err != nil {
		return err
	}
	s21, err := rf.LoadTraceFile(*s21Path)
	if err != nil {
		return err
	}

	run, err := eval.NewRun(s11, s21, ts, eval.RunMeta{
		Serial: *serial,
		Meta:   "test_run",
		PCBLot: *pcbLot,
	})
	if err != nil {
		return err
	}

	printRun(run)

	files, err := store.SaveRun(l, run)
	if err != nil {
		return err
	}
	log.Printf("[Run] artifacts in %s", files.Dir)
	log.Printf("[Lot] %s: %d samples, %d units, yield %.1f%%",
		l.Name, l.Samples, len(l.Units), 100*l.Yield())

	archivePath := *historyPath
	if archivePath == "" {
		archivePath = filepath.Join(*workDir, "history.db")
	}
	if arch, err := history.Open(archivePath); err != nil {
		log.Printf("[History] open %s: %v", archivePath, err)
	} else {
		if err := arch.Insert(l.Name, run); err != nil {
			log.Printf("[History] %v", err)
		}
		arch.Close()
	}

	report.RunArtifacts(files.Dir, run, s11, s21)
	return nil
}

func printRun(run *eval.Run) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RULE\tPARAM\tCENTER\tLIMIT\tDIR\tMIN\tMAX\tRESULT")
	for _, r := range run.Results {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f dB\t%s\t%s\t%s\t%s\n",
			r.TP.Name, r.TP.Parameter, rf.FormatFrequency(r.TP.Frequency),
			r.TP.LimitDB, r.TP.Direction,
			fmtGain(r.Min), fmtGain(r.Max), verdict(r.Passed))
	}
	w.Flush()
	fmt.Printf("run %s: %s\n", run.ID, verdict(run.Passed))
}

func fmtGain(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func verdict(passed bool) string {
	if passed {
		return "PASS"
	}
	return "FAIL"
}

func cmdLotNew(args []string) error {
	fs := flag.NewFlagSet("lot-new", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	name := fs.String("name", "", "lot name")
	specPath := fs.String("spec", "", "spec whose checksum to freeze (optional)")
	fs.Parse(args)

	checksum := ""
	if *specPath != "" {
		ts, err := spec.Load(*specPath)
		if err != nil {
			return err
		}
		checksum = ts.Checksum
	}

	l, err := lot.NewStore(*workDir).Create(*name, checksum)
	if err != nil {
		return err
	}
	fmt.Printf("lot %s created (checksum %s)\n", l.Name, orDash(l.Checksum))
	return nil
}

func cmdLots(args []string) error {
	fs := flag.NewFlagSet("lots", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	fs.Parse(args)

	lots, err := lot.NewStore(*workDir).Scan()
	if err != nil {
		return err
	}
	if len(lots) == 0 {
		fmt.Println("no lots")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOT\tSAMPLES\tUNITS\tPASSED\tFAILED\tYIELD\tCREATED")
	for _, l := range lots {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%.1f%%\t%s\n",
			l.Name, l.Samples, len(l.Units), l.PassedUnits, l.FailedUnits,
			100*l.Yield(), l.CreationDate)
	}
	return w.Flush()
}

func cmdHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	lotName := fs.String("lot", "", "lot to list")
	limit := fs.Int("limit", 50, "max runs to show")
	historyPath := fs.String("history", "", "run archive database (default <dir>/history.db)")
	fs.Parse(args)

	arch, err := openArchive(*historyPath, *workDir)
	if err != nil {
		return err
	}
	defer arch.Close()

	records, err := arch.ListByLot(*lotName, *limit)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RUN\tSERIAL\tPCB LOT\tRESULT\tWHEN")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			rec.RunID, orDash(rec.Serial), orDash(rec.PCBLot),
			verdict(rec.Passed), rec.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func cmdStats(args []string) error {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	lotName := fs.String("lot", "", "lot to analyse")
	historyPath := fs.String("history", "", "run archive database (default <dir>/history.db)")
	fs.Parse(args)

	arch, err := openArchive(*historyPath, *workDir)
	if err != nil {
		return err
	}
	defer arch.Close()

	stats, err := arch.LotStats(*lotName)
	if err != nil {
		return err
	}
	for _, rs := range stats {
		fmt.Println(rs.String())
	}
	return nil
}

func cmdReport(args []string) error {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	runID := fs.String("run", "", "archived run id")
	s11Path := fs.String("s11", "", "S11 trace CSV")
	s21Path := fs.String("s21", "", "S21 trace CSV")
	out := fs.String("out", ".", "output directory")
	historyPath := fs.String("history", "", "run archive database (default <dir>/history.db)")
	fs.Parse(args)

	arch, err := openArchive(*historyPath, *workDir)
	if err != nil {
		return err
	}
	defer arch.Close()

	rec, err := arch.Get(*runID)
	if err != nil {
		return err
	}
	results, err := rec.Results()
	if err != nil {
		return err
	}
	run := &eval.Run{
		Serial:       rec.Serial,
		ID:           rec.RunID,
		Timestamp:    rec.CreatedAt.Format(time.RFC3339),
		Meta:         "test_run",
		Passed:       rec.Passed,
		PCBLot:       rec.PCBLot,
		TestChecksum: rec.TestChecksum,
		Results:      results,
	}

	s11, err := rf.LoadTraceFile(*s11Path)
	if err != nil {
		return err
	}
	s21, err := rf.LoadTraceFile(*s21Path)
	if err != nil {
		return err
	}
	if len(s11) == 0 && len(s21) == 0 {
		return eval.ErrNoSweepData
	}

	if err := os.MkdirAll(*out, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	report.RunArtifacts(*out, run, s11, s21)
	fmt.Printf("report for run %s written to %s\n", run.ID, *out)
	return nil
}

func cmdGolden(args []string) error {
	fs := flag.NewFlagSet("golden", flag.ExitOnError)
	workDir := fs.String("dir", ".", "lot working directory")
	lotName := fs.String("lot", "", "lot to update")
	runID := fs.String("run", "", "run id to designate as golden reference")
	historyPath := fs.String("history", "", "run archive database (default <dir>/history.db)")
	fs.Parse(args)

	// The golden run must exist in the archive before it can anchor a lot.
	arch, err := openArchive(*historyPath, *workDir)
	if err != nil {
		return err
	}
	rec, err := arch.Get(*runID)
	arch.Close()
	if err != nil {
		return err
	}
	if rec.LotName != *lotName {
		return fmt.Errorf("run %s belongs to lot %s, not %s", rec.RunID, rec.LotName, *lotName)
	}

	store := lot.NewStore(*workDir)
	l, err := store.Load(*lotName)
	if err != nil {
		return err
	}
	l.GoldenRun = *runID
	if err := store.Save(l); err != nil {
		return err
	}
	fmt.Printf("lot %s golden run set to %s\n", l.Name, l.GoldenRun)
	return nil
}

func cmdPorts(args []string) error {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	fs.Parse(args)

	ports, err := device.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Println(p)
	}
	return nil
}

func openArchive(historyPath, workDir string) (*history.Store, error) {
	if historyPath == "" {
		historyPath = filepath.Join(workDir, "history.db")
	}
	return history.Open(historyPath)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
