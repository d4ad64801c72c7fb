/*Package config carries the controller's runtime configuration.

Compiled-in defaults cover a stock cabinet; an optional YAML file
overrides them for bench setups.  Cabinet identity (serial number, model
number, setpoint limits) lives in small plain-text files under /etc that
are provisioned at manufacturing time and read once at startup.
*/
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// FirmwareVersion is stamped into the CSS snapshot and the daily log
// header.
const FirmwareVersion = "0.9.021"

// Identity file locations and fallbacks.
const (
	SerialNumberFile      = "/etc/serialNumber.txt"
	ModelNumberFile       = "/etc/modelNumber.txt"
	SetpointLowLimitFile  = "/etc/setpointLowLimit.txt"
	SetpointHighLimitFile = "/etc/setpointHighLimit.txt"
	SoftShutdownFile      = "/etc/softShutdown"

	DefaultSerialNumber      = "0123456789"
	DefaultModelNumber       = "HennyPenny Frontier UHC Model 600"
	DefaultSetpointLowLimit  = 150
	DefaultSetpointHighLimit = 215
)

// Config is the full runtime configuration.
type Config struct {
	// Addresses, normally supplied on the command line.
	ControllerIP string `koanf:"controller_ip"`
	GUI1IP       string `koanf:"gui1_ip"`
	GUI2IP       string `koanf:"gui2_ip"`

	// EthernetInterface is the link watched for carrier loss.
	EthernetInterface string `koanf:"ethernet_interface"`

	// SDCardMountPoint holds the 30-day log card; LogDir is the
	// directory the daily CSV is written into when the card is
	// present, FallbackLogDir when it is not.
	SDCardMountPoint string `koanf:"sd_card_mount_point"`
	LogDir           string `koanf:"log_dir"`
	FallbackLogDir   string `koanf:"fallback_log_dir"`

	// Device files.
	ADCPathPattern string `koanf:"adc_path_pattern"`
	MuxSPIDevice   string `koanf:"mux_spi_device"`
	PowerSPIDevice string `koanf:"power_spi_device"`

	// CalibrationDir is where the per-channel table indirection files
	// live.
	CalibrationDir string `koanf:"calibration_dir"`
}

func defaults() Config {
	return Config{
		EthernetInterface: "eth0",
		SDCardMountPoint:  "/mnt/SD",
		LogDir:            "/mnt/SD/log/HennyPenny",
		FallbackLogDir:    "/var/log/HennyPenny",
		ADCPathPattern:    "/sys/bus/iio/devices/iio:device0/in_voltage%d_raw",
		MuxSPIDevice:      "/dev/spidev0.0",
		PowerSPIDevice:    "/dev/spidev1.0",
		CalibrationDir:    "/etc",
	}
}

// Load builds the configuration from defaults and, when path names an
// existing file, the YAML overrides in it.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(defaults(), "koanf"), nil); err != nil {
		return Config{}, err
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("load config %s: %w", path, err)
			}
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Identity is the manufacturing-provisioned cabinet identity.
type Identity struct {
	SerialNumber      string
	ModelNumber       string
	SetpointLowLimit  int
	SetpointHighLimit int
}

// ReadIdentity loads the /etc identity files, substituting the default
// for any file that is missing or malformed.
func ReadIdentity() Identity {
	id := Identity{
		SerialNumber:      readTrimmed(SerialNumberFile, DefaultSerialNumber),
		ModelNumber:       readTrimmed(ModelNumberFile, DefaultModelNumber),
		SetpointLowLimit:  readInt(SetpointLowLimitFile, DefaultSetpointLowLimit),
		SetpointHighLimit: readInt(SetpointHighLimitFile, DefaultSetpointHighLimit),
	}
	if id.SetpointLowLimit >= id.SetpointHighLimit {
		id.SetpointLowLimit = DefaultSetpointLowLimit
		id.SetpointHighLimit = DefaultSetpointHighLimit
	}
	return id
}

func readTrimmed(path, fallback string) string {
	b, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}
	s := strings.TrimSpace(string(b))
	if s == "" {
		return fallback
	}
	return s
}

func readInt(path string, fallback int) int {
	s := readTrimmed(path, "")
	if s == "" {
		return fallback
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return v
}
