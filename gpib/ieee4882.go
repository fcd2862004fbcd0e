package gpib

import (
	"fmt"
	"strconv"
	"strings"
)

// IEEE 488.2 common commands.
const (
	CmdIdentify          = "*IDN?"
	CmdEventStatus       = "*ESR?"
	CmdStatusByte        = "*STB?"
	CmdOperationComplete = "*OPC?"
)

// DefaultResponseSize is the response buffer size used by the common-command helpers.
const DefaultResponseSize = 256

// Identification is the parsed response to the identification query.
type Identification struct {
	Manufacturer string
	Model        string
	Serial       string
	Firmware     string
}

// String returns the fields joined as the device reported them.
func (id Identification) String() string {
	return strings.Join([]string{id.Manufacturer, id.Model, id.Serial, id.Firmware}, ",")
}

// ParseIdentification parses an "*IDN?" response of the form
// "manufacturer,model,serial,firmware". Trailing terminators and blanks are
// trimmed. Fields missing from short responses are left empty; extra fields
// are folded into Firmware.
func ParseIdentification(resp string) (Identification, error) {
	resp = strings.TrimRight(resp, "\r\n\x00 ")
	if resp == "" {
		return Identification{}, fmt.Errorf("gpib: empty identification response")
	}

	fields := strings.SplitN(resp, ",", 4)
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	fields = append(fields, make([]string, 4-len(fields))...)

	return Identification{
		Manufacturer: fields[0],
		Model:        fields[1],
		Serial:       fields[2],
		Firmware:     fields[3],
	}, nil
}

// EventStatus is the IEEE 488.2 standard event status register.
type EventStatus uint8

// Event status bits.
const (
	EventOperationComplete EventStatus = 1 << 0
	EventRequestControl    EventStatus = 1 << 1
	EventQueryError        EventStatus = 1 << 2
	EventDeviceError       EventStatus = 1 << 3
	EventExecutionError    EventStatus = 1 << 4
	EventCommandError      EventStatus = 1 << 5
	EventUserRequest       EventStatus = 1 << 6
	EventPowerOn           EventStatus = 1 << 7
)

var eventStatusNames = [8]string{
	"OperationComplete", "RequestControl", "QueryError", "DeviceError",
	"ExecutionError", "CommandError", "UserRequest", "PowerOn",
}

// HasError reports whether any of the error bits is set.
func (e EventStatus) HasError() bool {
	return e&(EventQueryError|EventDeviceError|EventExecutionError|EventCommandError) != 0
}

// String lists the set bits, e.g. "CommandError|PowerOn".
func (e EventStatus) String() string { return bitNames(uint8(e), eventStatusNames) }

// StatusByte is the IEEE 488.2 status byte register.
type StatusByte uint8

// Status byte bits.
const (
	StatusByteErrorQueue       StatusByte = 1 << 2
	StatusByteQuestionable     StatusByte = 1 << 3
	StatusByteMessageAvailable StatusByte = 1 << 4
	StatusByteEventSummary     StatusByte = 1 << 5
	StatusByteRequestService   StatusByte = 1 << 6
	StatusByteOperationSummary StatusByte = 1 << 7
)

var statusByteNames = [8]string{
	"", "", "ErrorQueue", "Questionable",
	"MessageAvailable", "EventSummary", "RequestService", "OperationSummary",
}

// String lists the set bits, e.g. "MessageAvailable|EventSummary".
func (b StatusByte) String() string { return bitNames(uint8(b), statusByteNames) }

func bitNames(v uint8, names [8]string) string {
	parts := make([]string, 0, 8)
	for i := 0; i < 8; i++ {
		if v&(1<<i) == 0 {
			continue
		}
		if names[i] == "" {
			parts = append(parts, "Bit"+strconv.Itoa(i))
		} else {
			parts = append(parts, names[i])
		}
	}
	if len(parts) == 0 {
		return "None"
	}

	return strings.Join(parts, "|")
}

// parseRegister parses the decimal register value of an "*ESR?" or "*STB?" response.
func parseRegister(resp string) (uint8, error) {
	resp = strings.TrimSpace(strings.TrimRight(resp, "\r\n\x00"))
	v, err := strconv.ParseUint(strings.TrimPrefix(resp, "+"), 10, 8)
	if err != nil {
		return 0, fmt.Errorf("gpib: invalid register value %q: %w", resp, err)
	}

	return uint8(v), nil
}

// Identify sends the identification query and parses the reply.
func (s *Session) Identify() (Identification, error) {
	resp, err := s.QueryString(CmdIdentify, DefaultResponseSize)
	if err != nil {
		return Identification{}, err
	}

	return ParseIdentification(resp)
}

// EventStatus queries and decodes the standard event status register.
// Reading the register clears it on the device.
func (s *Session) EventStatus() (EventStatus, error) {
	resp, err := s.QueryString(CmdEventStatus, DefaultResponseSize)
	if err != nil {
		return 0, err
	}

	v, err := parseRegister(resp)
	return EventStatus(v), err
}

// StatusByte queries and decodes the status byte register.
func (s *Session) StatusByte() (StatusByte, error) {
	resp, err := s.QueryString(CmdStatusByte, DefaultResponseSize)
	if err != nil {
		return 0, err
	}

	v, err := parseRegister(resp)
	return StatusByte(v), err
}
