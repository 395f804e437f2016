package display

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// sysfs writes /sys/class/backlight/<dev>/brightness directly. Needs the
// 'video' group or a udev rule; permission errors simply move the chain on.
func sysfs(opt Options) Strategy {
	return Strategy{Name: "sysfs", Set: func(ctx context.Context, level int) error {
		_ = ctx
		dev := strings.TrimSpace(opt.Device)
		if dev == "" {
			entries, err := os.ReadDir(opt.SysfsRoot)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				return fmt.Errorf("no backlight devices under %s", opt.SysfsRoot)
			}
			dev = entries[0].Name()
		}

		maxRaw, err := os.ReadFile(filepath.Join(opt.SysfsRoot, dev, "max_brightness"))
		if err != nil {
			return err
		}
		maxVal, err := strconv.Atoi(strings.TrimSpace(string(maxRaw)))
		if err != nil || maxVal <= 0 {
			return fmt.Errorf("bad max_brightness for %s", dev)
		}

		val := maxVal * level / 100
		if val < 1 {
			val = 1
		}
		return os.WriteFile(filepath.Join(opt.SysfsRoot, dev, "brightness"),
			[]byte(strconv.Itoa(val)), 0o644)
	}}
}
