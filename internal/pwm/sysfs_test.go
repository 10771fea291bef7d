package pwm

import (
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sweeney/flybox/internal/actuator"
)

const chip = "/sys/class/pwm/pwmchip0"

func readFile(t *testing.T, fs afero.Fs, p string) string {
	t.Helper()
	b, err := afero.ReadFile(fs, p)
	require.NoError(t, err)
	return string(b)
}

func newOpenOutput(t *testing.T) (*SysfsOutput, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	for _, d := range []string{"pwm0", "pwm1", "pwm2"} {
		require.NoError(t, fs.MkdirAll(chip+"/"+d, 0o755))
	}
	o := NewSysfsOutput(fs, chip, []int{0, 1, 2}, 200*time.Microsecond)
	require.NoError(t, o.Open())
	return o, fs
}

func TestOpenConfiguresLines(t *testing.T) {
	_, fs := newOpenOutput(t)

	for _, d := range []string{"pwm0", "pwm1", "pwm2"} {
		assert.Equal(t, "200000", readFile(t, fs, chip+"/"+d+"/period"))
		assert.Equal(t, "0", readFile(t, fs, chip+"/"+d+"/duty_cycle"))
		assert.Equal(t, "1", readFile(t, fs, chip+"/"+d+"/enable"))
	}
	exists, _ := afero.Exists(fs, chip+"/export")
	assert.False(t, exists, "already exported lines must not be exported again")
}

func TestOpenExportsMissingLines(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewSysfsOutput(fs, chip, []int{4}, time.Millisecond)
	require.NoError(t, o.Open())

	assert.Equal(t, "4", readFile(t, fs, chip+"/export"))
}

func TestSetDutyScalesToPeriod(t *testing.T) {
	o, fs := newOpenOutput(t)

	require.NoError(t, o.SetDuty(1, actuator.MaxDutyCycle))
	assert.Equal(t, "200000", readFile(t, fs, chip+"/pwm1/duty_cycle"))

	require.NoError(t, o.SetDuty(1, 51))
	assert.Equal(t, "40000", readFile(t, fs, chip+"/pwm1/duty_cycle"))
}

func TestSetDutyClamps(t *testing.T) {
	o, fs := newOpenOutput(t)

	require.NoError(t, o.SetDuty(0, 1000))
	assert.Equal(t, "200000", readFile(t, fs, chip+"/pwm0/duty_cycle"))

	require.NoError(t, o.SetDuty(0, -3))
	assert.Equal(t, "0", readFile(t, fs, chip+"/pwm0/duty_cycle"))
}

func TestSetDutySkipsRepeatedValue(t *testing.T) {
	o, fs := newOpenOutput(t)
	require.NoError(t, o.SetDuty(2, 100))

	// Tamper with the file; an unchanged duty must not rewrite it.
	require.NoError(t, afero.WriteFile(fs, chip+"/pwm2/duty_cycle", []byte("x"), 0o644))
	require.NoError(t, o.SetDuty(2, 100))
	assert.Equal(t, "x", readFile(t, fs, chip+"/pwm2/duty_cycle"))
}

func TestSetDutyUnknownChannel(t *testing.T) {
	o, _ := newOpenOutput(t)
	assert.ErrorIs(t, o.SetDuty(3, 10), ErrUnknownChannel)
}

func TestSetDutyWriteFailure(t *testing.T) {
	fs := afero.NewMemMapFs()
	o := NewSysfsOutput(afero.NewReadOnlyFs(fs), chip, []int{0}, time.Millisecond)

	assert.Error(t, o.SetDuty(0, 10))
	// A failed write forgets the cached value so the next call retries.
	assert.Equal(t, -1, o.last[0])
}

func TestClose(t *testing.T) {
	o, fs := newOpenOutput(t)
	require.NoError(t, o.SetDuty(0, 200))

	require.NoError(t, o.Close())

	assert.Equal(t, "0", readFile(t, fs, chip+"/pwm0/duty_cycle"))
	assert.Equal(t, "0", readFile(t, fs, chip+"/pwm0/enable"))
	assert.Equal(t, "2", readFile(t, fs, chip+"/unexport"))
}

// SysfsOutput must satisfy the actuator's output contract.
var _ actuator.Output = (*SysfsOutput)(nil)
