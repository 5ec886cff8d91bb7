package msr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/cpufreqctl/internal/errors"
)

type fakeRegisters struct {
	values map[uint32]uint64
	errs   map[uint32]error
	closed bool
}

func (f *fakeRegisters) Read(address uint32) (uint64, error) {
	if err, ok := f.errs[address]; ok {
		return 0, err
	}

	return f.values[address], nil
}

func (f *fakeRegisters) Close() error {
	f.closed = true
	return nil
}

type fakeClock struct {
	nowUs int64
}

func (c *fakeClock) now() int64 {
	return c.nowUs
}

func (c *fakeClock) advance(us int64) {
	c.nowUs += us
}

func newTestReader(regs *fakeRegisters) (*Reader, *fakeClock) {
	clock := &fakeClock{}
	return newReader(0, regs, clock.now), clock
}

func TestTemperatureDecode(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regTemperatureTarget: 100 << 16,
		regThermStatus:       40 << 16,
	}}
	reader, _ := newTestReader(regs)

	temperature, err := reader.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 60.0, temperature)
}

func TestTemperatureReadoutMasked(t *testing.T) {
	// Status bits above the 7-bit readout field must not leak into the value.
	regs := &fakeRegisters{values: map[uint32]uint64{
		regTemperatureTarget: 100 << 16,
		regThermStatus:       (1 << 31) | (25 << 16),
	}}
	reader, _ := newTestReader(regs)

	temperature, err := reader.Temperature()
	require.NoError(t, err)
	assert.Equal(t, 75.0, temperature)
}

func TestFrequencyDecode(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regPerfStatus: 36 << 8,
	}}
	reader, _ := newTestReader(regs)

	frequency, err := reader.Frequency()
	require.NoError(t, err)
	assert.Equal(t, uint64(3600), frequency)
}

func TestPowerFirstReadIsBaseline(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   0, // scale 0, unit 1 J
		regPkgEnergyStatus: 12345,
	}}
	reader, _ := newTestReader(regs)

	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 0.0, power)
}

func TestPowerRate(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   0,
		regPkgEnergyStatus: 100,
	}}
	reader, clock := newTestReader(regs)

	_, err := reader.Power()
	require.NoError(t, err)

	regs.values[regPkgEnergyStatus] = 300
	clock.advance(1_000_000)

	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 200.0, power)
}

func TestPowerEnergyUnitScale(t *testing.T) {
	// Scale 16 means one counter tick is 2^-16 J, so a delta of 65536 over
	// one second is exactly one watt.
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   16 << 8,
		regPkgEnergyStatus: 0,
	}}
	reader, clock := newTestReader(regs)

	_, err := reader.Power()
	require.NoError(t, err)

	regs.values[regPkgEnergyStatus] = 65536
	clock.advance(1_000_000)

	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 1.0, power)
}

func TestPowerCounterWraparound(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   0,
		regPkgEnergyStatus: 0xFFFFFFF0,
	}}
	reader, clock := newTestReader(regs)

	_, err := reader.Power()
	require.NoError(t, err)

	regs.values[regPkgEnergyStatus] = 0x00000005
	clock.advance(1_000_000)

	// (0xFFFFFFFF - 0xFFFFFFF0) + 5 = 20 J over one second.
	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 20.0, power)
}

func TestPowerZeroElapsed(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   0,
		regPkgEnergyStatus: 100,
	}}
	reader, _ := newTestReader(regs)

	_, err := reader.Power()
	require.NoError(t, err)

	regs.values[regPkgEnergyStatus] = 500

	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 0.0, power)
}

func TestPowerBaselineAdvances(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regRaplPowerUnit:   0,
		regPkgEnergyStatus: 0,
	}}
	reader, clock := newTestReader(regs)

	_, err := reader.Power()
	require.NoError(t, err)

	// Each subsequent read is measured against the immediately preceding one.
	regs.values[regPkgEnergyStatus] = 100
	clock.advance(1_000_000)
	power, err := reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 100.0, power)

	regs.values[regPkgEnergyStatus] = 150
	clock.advance(1_000_000)
	power, err = reader.Power()
	require.NoError(t, err)
	assert.Equal(t, 50.0, power)
}

func TestSample(t *testing.T) {
	regs := &fakeRegisters{values: map[uint32]uint64{
		regTemperatureTarget: 100 << 16,
		regThermStatus:       35 << 16,
		regPerfStatus:        28 << 8,
		regRaplPowerUnit:     0,
		regPkgEnergyStatus:   0,
	}}
	clock := &fakeClock{nowUs: 42}
	reader := newReader(3, regs, clock.now)

	snapshot, err := reader.Sample()
	require.NoError(t, err)
	assert.Equal(t, 3, snapshot.Core)
	assert.Equal(t, 65.0, snapshot.TemperatureCelsius)
	assert.Equal(t, uint64(2800), snapshot.FrequencyMHz)
	assert.Equal(t, 0.0, snapshot.PowerWatts)
	assert.Equal(t, int64(42), snapshot.TimestampUs)
}

func TestSampleFailsWhole(t *testing.T) {
	readErr := errors.New().New(ErrRegisterRead)
	regs := &fakeRegisters{
		values: map[uint32]uint64{
			regTemperatureTarget: 100 << 16,
			regPerfStatus:        28 << 8,
			regRaplPowerUnit:     0,
			regPkgEnergyStatus:   0,
		},
		errs: map[uint32]error{regThermStatus: readErr},
	}
	reader, _ := newTestReader(regs)

	_, err := reader.Sample()
	require.Error(t, err)
	assert.True(t, IsAccessError(err))
}
