package audio

import (
	"fmt"
	"strings"
)

// ResolveDeviceIndex picks the capture device for a session. Resolution
// order: preferred platform id, exact preferred name, preferred name
// substring, platform default, index 0.
func ResolveDeviceIndex(provider DeviceProvider, devices []Device, preferredID, preferredName string) int {
	if len(devices) == 0 {
		return -1
	}

	preferredID = strings.TrimSpace(preferredID)
	if preferredID != "" {
		for i, d := range devices {
			if strings.TrimSpace(d.UID) == preferredID {
				return i
			}
		}
	}

	preferredName = strings.TrimSpace(preferredName)
	if preferredName != "" {
		exact := strings.ToLower(preferredName)
		for i, d := range devices {
			if strings.ToLower(d.Name) == exact {
				return i
			}
		}
		for i, d := range devices {
			if strings.Contains(strings.ToLower(d.Name), exact) {
				return i
			}
		}
	}

	if provider != nil {
		if def, err := provider.DefaultOutputDevice(); err == nil && def != nil {
			for i, d := range devices {
				if d.UID != "" && d.UID == def.UID {
					return i
				}
				if d.Name == def.Name {
					return i
				}
			}
		}
	}

	return 0
}

// FindDeviceIndex returns the first device whose name contains the substring
// (case-insensitive), or -1.
func FindDeviceIndex(devices []Device, substring string) int {
	needle := strings.ToLower(strings.TrimSpace(substring))
	if needle == "" {
		return -1
	}
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			return i
		}
	}
	return -1
}

// DeviceNames returns the display names of the devices, in order.
func DeviceNames(devices []Device) []string {
	names := make([]string, len(devices))
	for i, d := range devices {
		names[i] = d.Name
	}
	return names
}

// ListDevices prints information about all loopback-eligible output devices.
func ListDevices(provider DeviceProvider) error {
	devices, err := provider.OutputDevices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Output Devices\n\n")
	for _, d := range devices {
		fmt.Printf("[%d] %s\n", d.ID, d.Name)
		fmt.Printf("    Output channels: %d\n", d.MaxOutputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", d.DefaultSampleRate)
		fmt.Println()
	}
	return nil
}
