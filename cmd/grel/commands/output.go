package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/cheggaaa/pb/v3"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/RosalindThackerByrne/grel/internal/download"
)

// logStep prints a top-level progress line unless --quiet is set.
func logStep(format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintln(os.Stderr,
		color.BlueString(" •"),
		color.New(color.FgHiBlack).Sprintf(format, args...),
	)
}

// logWarn surfaces advisory verification failures.
func logWarn(format string, args ...any) {
	fmt.Fprintln(os.Stderr,
		color.YellowString(" !"),
		fmt.Sprintf(format, args...),
	)
}

// progressReporter returns a download callback driving a terminal progress
// bar, plus a finalizer. Outside a terminal (or with --quiet) both are
// no-ops.
func progressReporter() (download.ProgressFunc, func()) {
	if quiet || (!isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd())) {
		return nil, func() {}
	}

	var bar *pb.ProgressBar
	report := func(p download.Progress) {
		if p.Total <= 0 {
			return
		}
		if bar == nil {
			bar = pb.New64(p.Total).
				SetTemplate(pb.ProgressBarTemplate(
					color.New(color.FgHiBlack).Sprint(
						`   └ {{counters . }} {{bar . "[" "=" ">" " " "]" }} {{percent . }} {{speed . }}`,
					),
				)).
				SetRefreshRate(time.Second / 60).
				SetMaxWidth(100).
				SetWriter(os.Stderr).
				Start()
		}
		bar.SetCurrent(p.Downloaded)
	}
	finish := func() {
		if bar != nil {
			bar.Finish()
		}
	}
	return report, finish
}
