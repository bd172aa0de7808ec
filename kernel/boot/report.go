package boot

import "mxos/kernel/driver/video/console"

const (
	faultBanner = "ERR: "
	heartbeat   = "OKAY"
)

var (
	faultAttr     = console.MakeAttr(console.White, console.Red)
	heartbeatAttr = console.MakeAttr(console.White, console.Green)
)

// ReportFault writes the fault banner followed by the fault digit at the top
// left corner of the screen.
func ReportFault(cons *console.Ega, code Code) {
	cons.WriteString(faultBanner, faultAttr, 0, 0)
	cons.Write(code.Digit(), faultAttr, uint16(len(faultBanner)), 0)
}

// ReportHeartbeat writes the liveness marker shown once 64-bit code runs.
func ReportHeartbeat(cons *console.Ega) {
	cons.WriteString(heartbeat, heartbeatAttr, 0, 0)
}
