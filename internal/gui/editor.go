// Package gui shows a still-frame preview of the timeline: one composed
// frame at the slider position, re-rendered whenever the slider settles.
package gui

import (
	"context"
	"fmt"
	"image"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/widget"
	"github.com/rs/zerolog"

	"github.com/keagan/vortex/internal/editor"
	"github.com/keagan/vortex/internal/pipeline"
	"github.com/keagan/vortex/internal/timeline"
	"github.com/keagan/vortex/pkg/util"
)

// Preview is the preview window state.
type Preview struct {
	logger zerolog.Logger
	ctrl   *editor.Controller

	window   fyne.Window
	frame    *canvas.Image
	slider   *widget.Slider
	position *widget.Label
	status   *widget.Label
	progress *widget.ProgressBar

	markIn time.Duration
}

// Run opens the preview window on ctrl and blocks until it closes. at is
// the initial position.
func Run(logger zerolog.Logger, ctrl *editor.Controller, at time.Duration) {
	a := app.NewWithID("vortex")
	p := newPreview(logger, ctrl, a.NewWindow("vortex preview"))
	p.refresh(at)
	p.window.ShowAndRun()
}

func newPreview(logger zerolog.Logger, ctrl *editor.Controller, w fyne.Window) *Preview {
	p := &Preview{
		logger:   logger.With().Str("component", "gui").Logger(),
		ctrl:     ctrl,
		window:   w,
		frame:    canvas.NewImageFromImage(image.NewNRGBA(image.Rect(0, 0, 1, 1))),
		slider:   widget.NewSlider(0, 1),
		position: widget.NewLabel(util.FormatDuration(0)),
		status:   widget.NewLabel("No video loaded"),
		progress: widget.NewProgressBar(),
	}
	w.Resize(fyne.NewSize(800, 600))

	p.frame.FillMode = canvas.ImageFillContain
	p.frame.SetMinSize(fyne.NewSize(640, 360))
	p.slider.Step = 0.001
	p.slider.OnChanged = func(v float64) {
		p.position.SetText(util.FormatDuration(seconds(v)))
	}
	p.slider.OnChangeEnded = func(v float64) {
		p.render(seconds(v))
	}

	load := widget.NewButton("Add Video", p.chooseClip)
	markIn := widget.NewButton("Mark In", func() {
		p.markIn = seconds(p.slider.Value)
		p.status.SetText("In at " + util.FormatDuration(p.markIn))
	})
	trim := widget.NewButton("Trim To Mark", p.trimToMark)
	split := widget.NewButton("Split", p.split)
	export := widget.NewButton("Export", p.chooseOutput)
	cancel := widget.NewButton("Cancel Export", ctrl.CancelExport)

	w.SetContent(container.NewBorder(
		nil,
		container.NewVBox(
			p.slider,
			p.position,
			container.NewHBox(load, markIn, trim, split),
			container.NewHBox(export, cancel),
			p.progress,
			p.status,
		),
		nil, nil,
		p.frame,
	))
	return p
}

func seconds(v float64) time.Duration {
	return time.Duration(v * float64(time.Second))
}

// refresh resizes the slider to the timeline and renders at.
func (p *Preview) refresh(at time.Duration) {
	d := p.ctrl.Duration()
	p.slider.Min = 0
	p.slider.Max = max(d.Seconds(), 0.001)
	p.slider.SetValue(min(at, d).Seconds())
	p.render(min(at, d))
}

// render composes the frame off the UI goroutine.
func (p *Preview) render(t time.Duration) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		img, err := p.ctrl.RenderFrame(ctx, t)
		fyne.Do(func() {
			if err != nil {
				p.logger.Warn().Err(err).Dur("at", t).Msg("frame render failed")
				p.status.SetText("Render failed: " + err.Error())
				return
			}
			p.frame.Image = img
			p.frame.Refresh()
		})
	}()
}

// clipAt returns the first clip under the playhead.
func (p *Preview) clipAt(t time.Duration) (timeline.Clip, bool) {
	for _, c := range p.ctrl.State().Clips {
		if c.Contains(t) {
			return c, true
		}
	}
	return timeline.Clip{}, false
}

func (p *Preview) chooseClip() {
	fd := dialog.NewFileOpen(func(ur fyne.URIReadCloser, err error) {
		if err != nil || ur == nil {
			return
		}
		defer ur.Close()
		path := ur.URI().Path()

		clip, err := p.ctrl.AddClip(context.Background(), path, 0, p.ctrl.Duration())
		if err != nil {
			dialog.ShowError(err, p.window)
			return
		}
		p.status.SetText(fmt.Sprintf("Added %s (%s)", filepath.Base(path), util.FormatDuration(clip.EffectiveDuration())))
		p.refresh(clip.Start)
	}, p.window)
	fd.SetFilter(storage.NewExtensionFileFilter([]string{".mp4", ".mov", ".mkv", ".webm"}))
	fd.Show()
}

// trimToMark keeps the part of the clip under the playhead between the
// mark and the playhead.
func (p *Preview) trimToMark() {
	at := seconds(p.slider.Value)
	clip, ok := p.clipAt(at)
	if !ok {
		p.status.SetText("No clip at playhead")
		return
	}
	from, to := max(min(p.markIn, at), clip.Start), max(p.markIn, at)
	if err := p.ctrl.TrimClip(clip.ID, clip.SourceTime(from), clip.SourceTime(to)); err != nil {
		dialog.ShowError(err, p.window)
		return
	}
	p.refresh(from)
}

func (p *Preview) split() {
	at := seconds(p.slider.Value)
	clip, ok := p.clipAt(at)
	if !ok {
		p.status.SetText("No clip at playhead")
		return
	}
	if _, err := p.ctrl.SplitClip(clip.ID, at); err != nil {
		dialog.ShowError(err, p.window)
		return
	}
	p.status.SetText("Split at " + util.FormatDuration(at))
}

func (p *Preview) chooseOutput() {
	fd := dialog.NewFileSave(func(uc fyne.URIWriteCloser, err error) {
		if err != nil || uc == nil {
			return
		}
		path := uc.URI().Path()
		uc.Close()
		go p.export(path)
	}, p.window)
	fd.SetFileName("vortex.mp4")
	fd.Show()
}

func (p *Preview) export(path string) {
	ok := p.ctrl.Export(context.Background(), path, 0, 0, 0, 0, func(s pipeline.State) {
		fyne.Do(func() {
			p.progress.SetValue(pipeline.Percent(s) / 100)
			p.status.SetText(s.String())
		})
	})
	p.logger.Info().Str("output", path).Bool("ok", ok).Msg("export finished")
}
