package crashctl

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/kdump-tools/crashctl/pkg/options"
)

func (top *Options) readConfigValues(c *Config) error {

	if err := top.prepareViperConfig(); err != nil {
		return err
	}

	c.verbose = viper.GetBool("verbose")
	c.logCmds = viper.GetBool("log_commands")

	// config file values fill in whatever flags left empty
	if !top.Session.Machine {
		top.Session.Machine = viper.GetBool("machine")
	}
	if top.Session.DumpPath == "" {
		top.Session.DumpPath = viper.GetString("dump")
	}
	if top.Session.MapPath == "" {
		top.Session.MapPath = viper.GetString("map")
	}
	if top.Session.ProfilePath == "" {
		top.Session.ProfilePath = viper.GetString("profile")
	}
	return nil
}

func writeDefaultConfigFile(fp string) error {
	fmt.Printf("crashctl config file not found. Writing default config to %v.\n", fp)
	var defaultConfigYaml = []byte(`# crashctl configuration file
verbose: true
log_commands: false
machine: false
# dump: /var/crash/vmcore
# map: /boot/System.map
# profile: /etc/crashctl/profile.yaml
createdby: crashctl-initialization
`)
	if err := ioutil.WriteFile(fp, defaultConfigYaml, 0644); err != nil {
		return err
	}
	return nil
}

// This needs to be called before viper can read any config values
func (top *Options) prepareViperConfig() error {
	if top.Internal.ConfigLoaded {
		// only load the config once
		return nil
	}

	crashctlDir, err := crashctlDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(crashctlDir, 0755); err != nil {
		return err
	}
	configFile := filepath.Join(crashctlDir, options.ConfigFileName)
	if _, err := os.Stat(configFile); err == nil {
		// path exists
		top.printVerbosef("Reading crashctl config from %v\n", configFile)
	} else {
		if err := writeDefaultConfigFile(configFile); err != nil {
			return err
		}
	}

	viper.SetConfigFile(configFile)
	viper.SetConfigType("yaml")
	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("Can't read config: %v", err)
	}
	top.Internal.ConfigLoaded = true
	return nil
}

func crashctlDir() (string, error) {
	// Find home directory.
	home, err := homedir.Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, options.ConfigDirName), nil
}
