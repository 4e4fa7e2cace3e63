package audio

import "fmt"

// PrintDevices writes a listing of all capture devices to stdout. Used
// by the one-off "list" command; the running pipeline never calls it.
func PrintDevices(backend Backend) error {
	devices, err := backend.Devices()
	if err != nil {
		return err
	}

	fmt.Printf("\nAvailable Capture Devices (%s)\n\n", backend.Name())

	for _, device := range devices {
		marker := ""
		if device.IsDefault {
			marker = " (default)"
		}
		fmt.Printf("[%d] %s%s\n", device.ID, device.Name, marker)
		fmt.Printf("    Input channels: %d\n", device.MaxInputChannels)
		fmt.Printf("    Default sample rate: %.0f Hz\n", device.DefaultSampleRate)
		fmt.Println()
	}

	return nil
}
