package executor

import (
	"context"

	"chime/internal/config"
	"chime/internal/platform/capability"
	"chime/internal/platform/execx"
	"chime/internal/platform/power"
	"chime/internal/sequence"
	logx "chime/pkg/logx"
)

// BrightnessSetter matches display.Chain.
type BrightnessSetter interface {
	SetBrightness(ctx context.Context, level int) capability.Result
}

// VolumeSetter matches audio.Chain.
type VolumeSetter interface {
	SetVolume(ctx context.Context, level int) capability.Result
}

// SleepInhibitor matches power.Chain.
type SleepInhibitor interface {
	Inhibit(ctx context.Context, reason string) (*power.Hold, capability.Result)
}

// Deps wires the executor to the platform. Every field is an interface or a
// value so tests substitute fakes without touching the host.
type Deps struct {
	Run        execx.Runner
	Display    BrightnessSetter
	Audio      VolumeSetter
	Power      SleepInhibitor
	MediaDir   string
	Player     config.PlayerConfig
	SessionEnv map[string]string
	Log        logx.Logger
}

func (d Deps) handlers(e *Executor) map[string]handler {
	return map[string]handler{
		sequence.KindPlayMedia:        d.playMedia,
		sequence.KindPlayRandomMedia:  d.playRandomMedia,
		sequence.KindOpenURL:          d.openURL,
		sequence.KindWait:             d.wait,
		sequence.KindSetBrightness:    d.setBrightness,
		sequence.KindSetVolume:        d.setVolume,
		sequence.KindInhibitSleep:     d.inhibitSleep(e),
		sequence.KindRunCommand:       d.runCommand,
		sequence.KindRecordAudio:      d.recordAudio,
		sequence.KindScreenAutomation: d.screenAutomation,
	}
}
