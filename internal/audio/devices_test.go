package audio

import "testing"

func testDevices() []Device {
	return []Device{
		{ID: 0, UID: "uid-a", Name: "Built-in Speakers"},
		{ID: 1, UID: "uid-b", Name: "USB DAC"},
		{ID: 2, UID: "uid-c", Name: "HDMI Output"},
	}
}

func TestResolveDeviceIndex(t *testing.T) {
	devices := testDevices()
	provider := &fakeProvider{ready: true, devices: []Device{devices[2], devices[0], devices[1]}}

	tests := []struct {
		name          string
		preferredID   string
		preferredName string
		expected      int
	}{
		{"by platform id", "uid-b", "", 1},
		{"by exact name", "", "usb dac", 1},
		{"by name substring", "", "hdmi", 2},
		{"id beats name", "uid-a", "USB DAC", 0},
		{"unknown id falls through to name", "uid-zzz", "USB DAC", 1},
		{"platform default when nothing preferred", "", "", 2},
		{"unknown everything uses default", "uid-zzz", "no such device", 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveDeviceIndex(provider, devices, tt.preferredID, tt.preferredName)
			if got != tt.expected {
				t.Errorf("ResolveDeviceIndex(%q, %q) = %d, expected %d",
					tt.preferredID, tt.preferredName, got, tt.expected)
			}
		})
	}
}

func TestResolveDeviceIndexEmpty(t *testing.T) {
	if got := ResolveDeviceIndex(nil, nil, "", ""); got != -1 {
		t.Errorf("expected -1 for empty device list, got %d", got)
	}
}

func TestResolveDeviceIndexNoProviderFallsBackToZero(t *testing.T) {
	if got := ResolveDeviceIndex(nil, testDevices(), "", ""); got != 0 {
		t.Errorf("expected index 0 without a provider default, got %d", got)
	}
}

func TestFindDeviceIndex(t *testing.T) {
	devices := testDevices()
	tests := []struct {
		substring string
		expected  int
	}{
		{"usb", 1},
		{"SPEAKERS", 0},
		{"nothing", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := FindDeviceIndex(devices, tt.substring); got != tt.expected {
			t.Errorf("FindDeviceIndex(%q) = %d, expected %d", tt.substring, got, tt.expected)
		}
	}
}

func TestDeviceNames(t *testing.T) {
	names := DeviceNames(testDevices())
	expected := []string{"Built-in Speakers", "USB DAC", "HDMI Output"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i, name := range names {
		if name != expected[i] {
			t.Errorf("name %d = %q, expected %q", i, name, expected[i])
		}
	}
}
