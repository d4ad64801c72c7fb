package msg

// SystemCommands enumerates every command a display unit can issue.
type SystemCommands int32

// System command values.
const (
	CommandUnknown SystemCommands = iota
	CommandEstablishLink
	CommandStartup
	CommandShutdownRequested
	CommandEmergencyStop
	CommandIdle
	CommandHeaterOn
	CommandHeaterOff
	CommandUpdateSlotTempSetpoint
	CommandSetHeaterTempSetpoint
	CommandSetDuration
	CommandSetEcoModeTime
	CommandSetEcoModeTemp
	CommandEcoModeOn
	CommandEcoModeOff
	CommandFanOn
	CommandFanOff
	CommandCleaningModeOn
	CommandCleaningModeOff
	CommandNSOModeOn
	CommandDemoModeOn
	CommandDemoModeOff
	CommandConfigureLogging
)

var commandNames = map[SystemCommands]string{
	CommandUnknown:                "SYSTEM_COMMAND_UNKNOWN",
	CommandEstablishLink:          "SYSTEM_COMMAND_ESTABLISH_LINK",
	CommandStartup:                "SYSTEM_COMMAND_STARTUP",
	CommandShutdownRequested:      "SYSTEM_COMMAND_SHUTDOWN_REQUESTED",
	CommandEmergencyStop:          "SYSTEM_COMMAND_EMERGENCY_STOP",
	CommandIdle:                   "SYSTEM_COMMAND_IDLE",
	CommandHeaterOn:               "SYSTEM_COMMAND_HEATER_ON",
	CommandHeaterOff:              "SYSTEM_COMMAND_HEATER_OFF",
	CommandUpdateSlotTempSetpoint: "SYSTEM_COMMAND_UPDATE_SLOT_TEMP_SETPOINT",
	CommandSetHeaterTempSetpoint:  "SYSTEM_COMMAND_SET_HEATER_TEMP_SETPOINT",
	CommandSetDuration:            "SYSTEM_COMMAND_SET_DURATION",
	CommandSetEcoModeTime:         "SYSTEM_COMMAND_SET_ECO_MODE_TIME",
	CommandSetEcoModeTemp:         "SYSTEM_COMMAND_SET_ECO_MODE_TEMP",
	CommandEcoModeOn:              "SYSTEM_COMMAND_ECO_MODE_ON",
	CommandEcoModeOff:             "SYSTEM_COMMAND_ECO_MODE_OFF",
	CommandFanOn:                  "SYSTEM_COMMAND_FAN_ON",
	CommandFanOff:                 "SYSTEM_COMMAND_FAN_OFF",
	CommandCleaningModeOn:         "SYSTEM_COMMAND_CLEANING_MODE_ON",
	CommandCleaningModeOff:        "SYSTEM_COMMAND_CLEANING_MODE_OFF",
	CommandNSOModeOn:              "SYSTEM_COMMAND_NSO_MODE_ON",
	CommandDemoModeOn:             "SYSTEM_COMMAND_DEMO_MODE_ON",
	CommandDemoModeOff:            "SYSTEM_COMMAND_DEMO_MODE_OFF",
	CommandConfigureLogging:       "SYSTEM_COMMAND_CONFIGURE_LOGGING",
}

// String implements fmt.Stringer with the wire-stable command names.
func (c SystemCommands) String() string {
	if s, ok := commandNames[c]; ok {
		return s
	}
	return commandNames[CommandUnknown]
}

// SystemCommandResponses is the result taxonomy for command replies.
type SystemCommandResponses int32

// Response values.
const (
	ResponseUnknown SystemCommandResponses = iota
	ResponseOK
	ResponseBadParameter
	ResponseFailure
	ResponseShutdownPending
	ResponseLinkEstablished
)

var responseNames = map[SystemCommandResponses]string{
	ResponseUnknown:         "SYSTEM_COMMAND_RESPONSE_UNKNOWN",
	ResponseOK:              "SYSTEM_COMMAND_RESPONSE_OK",
	ResponseBadParameter:    "SYSTEM_COMMAND_RESPONSE_BAD_PARAMETER",
	ResponseFailure:         "SYSTEM_COMMAND_RESPONSE_FAILURE",
	ResponseShutdownPending: "SYSTEM_COMMAND_RESPONSE_SHUTDOWN_PENDING",
	ResponseLinkEstablished: "SYSTEM_COMMAND_RESPONSE_LINK_ESTABLISHED",
}

func (r SystemCommandResponses) String() string {
	if s, ok := responseNames[r]; ok {
		return s
	}
	return responseNames[ResponseUnknown]
}

// FanNumber selects which fan a fan command addresses.
type FanNumber int32

// Fan selector values.
const (
	FanNumberUnknown FanNumber = iota
	FanNumber1
	FanNumber2
	FanNumberBoth
)

// SystemStatus is the coarse controller state reflected in the CSS.
type SystemStatus int32

// System status values.
const (
	SystemStatusUnknown SystemStatus = iota
	SystemStatusNormal
	SystemStatusError
	SystemStatusStartup
	SystemStatusStartupComplete
)

var statusNames = map[SystemStatus]string{
	SystemStatusUnknown:         "SYSTEM_STATUS_UNKNOWN",
	SystemStatusNormal:          "SYSTEM_STATUS_NORMAL",
	SystemStatusError:           "SYSTEM_STATUS_ERROR",
	SystemStatusStartup:         "SYSTEM_STATUS_STARTUP",
	SystemStatusStartupComplete: "SYSTEM_STATUS_STARTUP_COMPLETE",
}

func (s SystemStatus) String() string {
	if v, ok := statusNames[s]; ok {
		return v
	}
	return statusNames[SystemStatusUnknown]
}

// AlarmCode identifies the most recently raised alarm.
type AlarmCode int32

// Alarm code values.
const (
	AlarmNone AlarmCode = iota
	AlarmHeatsinkOverTemp
	AlarmAmbientOverTemp
	AlarmSlotOverTemp
	AlarmSlotUnderTemp
	AlarmGUIFailure
	AlarmSDCardMissing
	AlarmHardwareFailure
	AlarmFanFailure
	AlarmStartupTimeExceeded
	AlarmEthernetDown
	AlarmPowerFailDetected
)

// HeaterLocation distinguishes the two heaters of a slot.
type HeaterLocation int32

// Heater locations.
const (
	HeaterLocationUnknown HeaterLocation = iota
	HeaterLocationUpper
	HeaterLocationLower
)

// SystemCommand is the request record published by a display unit on its
// CMD topic.
type SystemCommand struct {
	Topic           string         `json:"topic"`
	SenderIPAddress string         `json:"sender_ip_address"`
	SequenceNumber  uint32         `json:"sequence_number"`
	Command         SystemCommands `json:"command"`

	// HeaterIndex is 0-11 for heater-addressed commands.
	HeaterIndex int32 `json:"heater_index,omitempty"`
	// SlotNumber is 1-6 for slot-addressed commands.
	SlotNumber  int32 `json:"slot_number,omitempty"`
	Temperature int32 `json:"temperature,omitempty"`

	UpperSetpointTemperature int32 `json:"heater_location_upper_setpoint_temperature,omitempty"`
	LowerSetpointTemperature int32 `json:"heater_location_lower_setpoint_temperature,omitempty"`

	FanNumber FanNumber `json:"fan_number,omitempty"`

	// Advisory hold window, unix seconds.
	StartTime int64 `json:"start_time,omitempty"`
	EndTime   int64 `json:"end_time,omitempty"`

	LoggingIsEventDriven bool   `json:"logging_is_event_driven,omitempty"`
	LoggingPeriodSeconds uint32 `json:"logging_period_seconds,omitempty"`
}

// SystemCommandResponse is the controller's reply on the per-GUI RSP
// topic.
type SystemCommandResponse struct {
	Topic              string                 `json:"topic"`
	RequesterIPAddress string                 `json:"requester_ip_address"`
	SequenceNumber     uint32                 `json:"sequence_number"`
	Command            SystemCommands         `json:"command"`
	Response           SystemCommandResponses `json:"response"`
	SlotNumber         int32                  `json:"slot_number,omitempty"`
}

// Heartbeat is the periodic GUI liveness record.
type Heartbeat struct {
	Topic           string `json:"topic"`
	SenderIPAddress string `json:"sender_ip_address"`
	SequenceNumber  uint32 `json:"sequence_number"`
}

// TimeSync pushes wall-clock time from a display unit to the controller.
type TimeSync struct {
	Topic           string `json:"topic"`
	SenderIPAddress string `json:"sender_ip_address"`
	SequenceNumber  uint32 `json:"sequence_number"`
	CurrentTime     int64  `json:"current_time"`
	TimeZone        string `json:"time_zone,omitempty"`
	IsMaster        bool   `json:"is_master"`
}

// FirmwareUpdate asks the controller to fetch and install a package.
type FirmwareUpdate struct {
	Topic           string `json:"topic"`
	SenderIPAddress string `json:"sender_ip_address"`
	SequenceNumber  uint32 `json:"sequence_number"`
	Username        string `json:"username"`
	Password        string `json:"password"`
	FilePath        string `json:"file_path"`
}

// FirmwareResult reports the outcome of a firmware update.
type FirmwareResult struct {
	Topic               string `json:"topic"`
	ControllerIPAddress string `json:"controller_ip_address"`
	SequenceNumber      uint32 `json:"sequence_number"`
	ResultText          string `json:"result_text"`
}

// HeaterData is one heater's slice of the CSS snapshot.
type HeaterData struct {
	State          bool           `json:"state"`
	Location       HeaterLocation `json:"location"`
	ThermistorTemp int32          `json:"thermistor_temp"`
	SetpointTemp   int32          `json:"setpoint_temp"`
	IsOpen         bool           `json:"is_open"`
	IsShorted      bool           `json:"is_shorted"`
	IsOvertemp     bool           `json:"is_overtemp"`
	IsUndertemp    bool           `json:"is_undertemp"`
	IsEnabled      bool           `json:"is_enabled"`
	StartTime      int64          `json:"start_time,omitempty"`
	EndTime        int64          `json:"end_time,omitempty"`
}

// SlotData pairs the two heaters of one holding slot.
type SlotData struct {
	SlotNumber          int32      `json:"slot_number"`
	HeaterLocationUpper HeaterData `json:"heater_location_upper"`
	HeaterLocationLower HeaterData `json:"heater_location_lower"`
}

// SystemData is the system-wide slice of the CSS snapshot.
type SystemData struct {
	CurrentTime  int64 `json:"current_time"`
	SystemUpTime int64 `json:"system_up_time"`

	HeatsinkTemp int32 `json:"heatsink_temp"`
	AmbientTemp  int32 `json:"ambient_temp"`

	ControllerIPAddress string `json:"controller_ip_address"`
	GUI1IPAddress       string `json:"intelligent_glass_1_ip_address"`
	GUI2IPAddress       string `json:"intelligent_glass_2_ip_address"`
	SecondsSinceGUI1    uint32 `json:"seconds_since_gui1"`
	SecondsSinceGUI2    uint32 `json:"seconds_since_gui2"`

	Fan1On bool `json:"fan1_on"`
	Fan2On bool `json:"fan2_on"`

	LineVoltage             float64 `json:"line_voltage"`
	CurrentPowerConsumption float64 `json:"current_power_consumption"`

	SystemStatus SystemStatus `json:"system_status"`
	AlarmCode    AlarmCode    `json:"alarm_code"`
	ErrorCode    string       `json:"error_code,omitempty"`

	ConfiguredEcoModeTemp int32 `json:"configured_eco_mode_temp"`

	ShutdownRequested   bool           `json:"shutdown_requested"`
	LastCommandReceived SystemCommands `json:"last_command_received"`

	InCleaningMode bool `json:"in_cleaning_mode"`
	NSOMode        bool `json:"nso_mode"`
	DemoMode       bool `json:"demo_mode"`

	HardwareRevision int32 `json:"hardware_revision"`

	LoggingIsEventDriven bool   `json:"logging_is_event_driven"`
	LoggingPeriodSeconds uint32 `json:"logging_period_seconds"`

	SDCardPresent bool `json:"sd_card_present"`
	EthernetUp    bool `json:"ethernet_up"`
}

// CurrentSystemState is the once-per-second controller snapshot.
type CurrentSystemState struct {
	Topic           string     `json:"topic"`
	SequenceNumber  uint32     `json:"sequence_number"`
	SystemData      SystemData `json:"system_data"`
	SlotData        []SlotData `json:"slot_data"`
	SerialNumber    string     `json:"serial_number"`
	ModelNumber     string     `json:"model_number"`
	FirmwareVersion string     `json:"firmware_version"`
}

// RTDChannelData is one thermistor channel of the raw snapshot.
type RTDChannelData struct {
	RTDNumber int32 `json:"rtd_number"`
	RawCounts int32 `json:"raw_counts"`
	TempF     int32 `json:"temp_f"`
	IsOpen    bool  `json:"is_open"`
	IsShorted bool  `json:"is_shorted"`
}

// RTDData is the raw thermistor snapshot published on the RTD topic.
type RTDData struct {
	Topic          string           `json:"topic"`
	SequenceNumber uint32           `json:"sequence_number"`
	Channels       []RTDChannelData `json:"channels"`
}
