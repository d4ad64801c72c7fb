package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	c, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if c.EthernetInterface != "eth0" {
		t.Errorf("iface = %s, want eth0", c.EthernetInterface)
	}
	if c.MuxSPIDevice != "/dev/spidev0.0" || c.PowerSPIDevice != "/dev/spidev1.0" {
		t.Errorf("spi devices = %s / %s", c.MuxSPIDevice, c.PowerSPIDevice)
	}
	if c.LogDir != "/mnt/SD/log/HennyPenny" {
		t.Errorf("log dir = %s", c.LogDir)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frontier-uhc.yaml")
	yaml := "log_dir: /tmp/logs\nethernet_interface: eth1\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if c.LogDir != "/tmp/logs" {
		t.Errorf("log dir override lost: %s", c.LogDir)
	}
	if c.EthernetInterface != "eth1" {
		t.Errorf("iface override lost: %s", c.EthernetInterface)
	}
	// Untouched keys keep their defaults.
	if c.MuxSPIDevice != "/dev/spidev0.0" {
		t.Errorf("default clobbered: %s", c.MuxSPIDevice)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := Load("/nonexistent/frontier-uhc.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if c.SDCardMountPoint != "/mnt/SD" {
		t.Errorf("mount point = %s", c.SDCardMountPoint)
	}
}
