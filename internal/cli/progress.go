package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/schollz/progressbar/v3"

	"github.com/kitbuilder587/ba-analyser/internal/analyser"
	"github.com/kitbuilder587/ba-analyser/internal/stories"
)

// progressReporter показывает ход оценки измерений.
// В CI пишет построчно, в терминале рисует прогресс-бар.
type progressReporter struct {
	w     io.Writer
	lines bool
	bar   *progressbar.ProgressBar
}

func newProgressReporter(w io.Writer) *progressReporter {
	return &progressReporter{
		w:     w,
		lines: os.Getenv("CI") != "" || os.Getenv("GITHUB_ACTIONS") != "",
	}
}

func (p *progressReporter) observe(e analyser.Event) {
	if p.lines {
		switch e.Kind {
		case analyser.EventDimensionComplete:
			fmt.Fprintf(p.w, "[%d/%d] %s: %.0f\n", e.Index, e.Total, e.Name, e.Score)
		case analyser.EventSynthesising:
			fmt.Fprintln(p.w, "synthesising results")
		}
		return
	}

	if p.bar == nil {
		// +1 шаг на синтез
		p.bar = progressbar.NewOptions(e.Total+1,
			progressbar.OptionSetWriter(p.w),
			progressbar.OptionSetDescription("Analysing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	switch e.Kind {
	case analyser.EventDimensionStarted:
		p.bar.Describe(e.Name)
	case analyser.EventDimensionComplete:
		_ = p.bar.Add(1)
	case analyser.EventSynthesising:
		p.bar.Describe("Synthesising")
		_ = p.bar.Add(1)
	}
}

var stepNames = map[stories.Step]string{
	stories.StepExtracting: "Extracting requirements",
	stories.StepPersonas:   "Identifying personas",
	stories.StepGenerating: "Generating stories",
	stories.StepCoverage:   "Validating coverage",
}

// observeStep - шаги генерации историй, total известен заранее
func (p *progressReporter) observeStep(total int) stories.ProgressFunc {
	return func(e stories.Event) {
		if p.lines {
			if e.Done {
				fmt.Fprintf(p.w, "%s: %d\n", stepNames[e.Step], e.Count)
			}
			return
		}
		if p.bar == nil {
			p.bar = progressbar.NewOptions(total,
				progressbar.OptionSetWriter(p.w),
				progressbar.OptionSetDescription("Generating"),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)
		}
		if e.Done {
			_ = p.bar.Add(1)
		} else {
			p.bar.Describe(stepNames[e.Step])
		}
	}
}

func (p *progressReporter) finish() {
	if p.bar != nil {
		_ = p.bar.Finish()
		p.bar = nil
	}
}
