// Package render is the host-facing frame layer: it accepts decoded display
// lists and framebuffer presentations from the emulation core and draws
// them through the gpu package onto a surface the host owns.
//
// The package never creates a GPU device. Hosts hand one in through a
// DeviceHandle, keeping resource lifetime and surface format under host
// control.
package render
