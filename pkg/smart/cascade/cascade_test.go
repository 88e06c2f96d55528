// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company and prysm contributors
//
// SPDX-License-Identifier: Apache-2.0

package cascade

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cobaltcore-dev/diskprobe/pkg/smart/channel"
)

type fakeChannel struct {
	responses map[channel.Dialect][]byte
	issued    []channel.Dialect
}

func (f *fakeChannel) Issue(_ context.Context, cmd channel.Command) ([]byte, error) {
	f.issued = append(f.issued, cmd.Dialect)
	buf, ok := f.responses[cmd.Dialect]
	if !ok {
		return nil, channel.Fail(cmd, errors.New("no answer"))
	}
	return buf, nil
}

func (f *fakeChannel) Close() error { return nil }

func ataIdentify(model, firmware string) []byte {
	buf := make([]byte, channel.ATASectorSize)
	put := func(word, width int, s string) {
		field := []byte(s)
		for len(field) < width {
			field = append(field, ' ')
		}
		for i := 0; i+1 < width; i += 2 {
			buf[word*2+i] = field[i+1]
			buf[word*2+i+1] = field[i]
		}
	}
	put(10, 20, "SERIAL0001")
	put(23, 8, firmware)
	put(27, 40, model)
	return buf
}

func nvmeIdentify(model string) []byte {
	buf := make([]byte, channel.NVMeIdentifySize)
	copy(buf[4:24], "NVME0001            ")
	copy(buf[24:64], model)
	copy(buf[64:72], "1.0     ")
	return buf
}

func dialects(attempts []Attempt) []channel.Dialect {
	out := make([]channel.Dialect, 0, len(attempts))
	for _, a := range attempts {
		out = append(out, a.Dialect)
	}
	return out
}

func TestPlanSATA(t *testing.T) {
	got := dialects(Plan(channel.Descriptor{Path: "/dev/sda", Bus: channel.BusSATA}))
	require.NotEmpty(t, got)
	assert.Equal(t, channel.PhysicalDrive, got[0])
	assert.Equal(t, channel.ScsiMiniport, got[1])
}

func TestPlanNVMeByPath(t *testing.T) {
	got := dialects(Plan(channel.Descriptor{Path: "/dev/nvme0n1"}))
	for _, d := range got {
		assert.True(t, d.IsNVMe(), d.String())
	}
}

func TestPlanUSBVendors(t *testing.T) {
	got := dialects(Plan(channel.Descriptor{Path: "/dev/sdb", Bus: channel.BusUSB, VendorID: VendorSunplus}))
	assert.Equal(t, []channel.Dialect{channel.Sunplus, channel.SAT}, got)

	got = dialects(Plan(channel.Descriptor{Path: "/dev/sdb", Bus: channel.BusUSB, VendorID: VendorASMedia, ProductID: 0x2362}))
	assert.Equal(t, channel.NVMeASMedia, got[0])

	got = dialects(Plan(channel.Descriptor{Path: "/dev/sdb", Bus: channel.BusUSB, VendorID: VendorASMedia, ProductID: 0x1153}))
	assert.Equal(t, channel.SAT, got[0])

	got = dialects(Plan(channel.Descriptor{Path: "/dev/sdb", Bus: channel.BusUSB, VendorID: 0xFFFF}))
	assert.Equal(t, usbDefaultOrder, got)
}

func TestPlanRAIDFallsThroughToATA(t *testing.T) {
	got := dialects(Plan(channel.Descriptor{Path: "/dev/sdc", Bus: channel.BusRAID}))
	assert.Equal(t, channel.CSMIPhysicalDrive, got[0])
	assert.Contains(t, got, channel.PhysicalDrive)
}

func TestRunFirstValidWins(t *testing.T) {
	ch := &fakeChannel{responses: map[channel.Dialect][]byte{
		channel.ScsiMiniport: ataIdentify("WDC WD40EFRX-68N32N0", "82.00A82"),
		channel.SAT:          ataIdentify("SHOULD NOT BIND", "1"),
	}}

	res, err := Run(context.Background(), ch, channel.Descriptor{Path: "/dev/sda", Bus: channel.BusSATA})
	require.NoError(t, err)
	assert.Equal(t, channel.ScsiMiniport, res.Dialect)
	assert.Equal(t, "WDC WD40EFRX-68N32N0", res.Model)
	assert.Equal(t, "82.00A82", res.Firmware)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, channel.PhysicalDrive, res.Failed[0].Attempt.Dialect)
	assert.True(t, channel.IsChannelError(res.Failed[0].Err))
	assert.Equal(t, []channel.Dialect{channel.PhysicalDrive, channel.ScsiMiniport}, ch.issued)
}

func TestRunRejectsImplausibleBuffers(t *testing.T) {
	ch := &fakeChannel{responses: map[channel.Dialect][]byte{
		channel.PhysicalDrive: make([]byte, channel.ATASectorSize),
		channel.ScsiMiniport:  ataIdentify("", "1"),
		channel.SiliconImage:  make([]byte, 64),
		channel.SAT:           ataIdentify("ST4000VN008-2DR166", "SC60"),
	}}

	res, err := Run(context.Background(), ch, channel.Descriptor{Path: "/dev/sda", Bus: channel.BusSATA})
	require.NoError(t, err)
	assert.Equal(t, channel.SAT, res.Dialect)
	require.Len(t, res.Failed, 3)
	for _, f := range res.Failed {
		assert.True(t, channel.IsValidationError(f.Err), f.Attempt.String())
	}
}

func TestRunNVMe(t *testing.T) {
	ch := &fakeChannel{responses: map[channel.Dialect][]byte{
		channel.NVMeStorageQuery: nvmeIdentify("Samsung SSD 970 EVO Plus 1TB"),
	}}
	res, err := Run(context.Background(), ch, channel.Descriptor{Path: "/dev/nvme0", Bus: channel.BusNVMe})
	require.NoError(t, err)
	assert.True(t, res.NVMe())
	assert.Equal(t, "Samsung SSD 970 EVO Plus 1TB", res.Controller().Model())
}

func TestRunExhausted(t *testing.T) {
	ch := &fakeChannel{}
	_, err := Run(context.Background(), ch, channel.Descriptor{Path: "/dev/sda", Bus: channel.BusSATA})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotIdentified)
	assert.Len(t, ch.issued, len(ataOrder))
}

func TestRunKnownBad(t *testing.T) {
	tests := []struct {
		name  string
		bus   channel.BusType
		model string
		fw    string
	}{
		{"card reader", channel.BusUSB, "Generic SD/MMC CRW", "1.00"},
		{"fuzedrive", channel.BusSATA, "FuzeDrive 1TB", "1"},
		{"storemi", channel.BusSATA, "AMD StoreMI", "1"},
		{"hd204ui", channel.BusSATA, "SAMSUNG HD204UI", "1AQ10001"},
		{"jmicron array", channel.BusUSB, "JMicron RAlD", "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ch := &fakeChannel{responses: map[channel.Dialect][]byte{}}
			for _, a := range Plan(channel.Descriptor{Bus: tt.bus}) {
				ch.responses[a.Dialect] = ataIdentify(tt.model, tt.fw)
			}
			_, err := Run(context.Background(), ch, channel.Descriptor{Path: "/dev/sdx", Bus: tt.bus})
			require.Error(t, err)
			assert.True(t, channel.IsValidationError(err))
			assert.NotErrorIs(t, err, ErrNotIdentified)
		})
	}
}

func TestKnownBadHD204UIOtherFirmware(t *testing.T) {
	_, bad := KnownBad(channel.BusSATA, "SAMSUNG HD204UI", "1AQ10003")
	assert.False(t, bad)
	_, bad = KnownBad(channel.BusSATA, "Generic SD/MMC CRW", "")
	assert.False(t, bad)
}

func TestRunCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, &fakeChannel{}, channel.Descriptor{Path: "/dev/sda"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunReplay(t *testing.T) {
	r, err := channel.LoadReplay("../channel/testdata/sata_ssd.yaml")
	require.NoError(t, err)

	res, err := Run(context.Background(), r, r.Descriptor())
	require.NoError(t, err)
	assert.Equal(t, channel.PhysicalDrive, res.Dialect)
	assert.Equal(t, "SAMSUNG MZ-V7E500", res.Model)
	assert.Equal(t, "S3Z2NB0K123456A", res.Serial)
	assert.True(t, res.ATA().NonRotating())
}
