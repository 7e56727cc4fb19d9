/*
File Name:  Config.go

YAML configuration loading, adapted from the teacher's Config.go: the
shape (struct with yaml tags, LoadConfig/saveConfig, a baked-in default)
is unchanged, only the fields differ — this core has no listen address or
seed list, since transport lives entirely behind the Link interface.
*/

package core

import (
	"io/ioutil"
	"log"
	"os"

	"gopkg.in/yaml.v3"
)

// Version is the current core library version.
const Version = "0.1"

type Config struct {
	LogFile string `yaml:"LogFile"`

	Nickname string `yaml:"Nickname"`

	// RelayMTU is the maximum logical payload size before fragmentation
	// kicks in (§4.7).
	RelayMTU int `yaml:"RelayMTU"`

	// StoreAndForwardRetentionHours is parsed but not read by the core:
	// non-favorite pending-frame retention is always relay.DefaultRetention
	// (12h, §4.8).
	StoreAndForwardRetentionHours int `yaml:"StoreAndForwardRetentionHours"`

	// Favorites/Blocked are fingerprints persisted across restarts; the
	// running FavoritesList is seeded from these at startup.
	Favorites []string `yaml:"Favorites"`
	Blocked   []string `yaml:"Blocked"`
}

var defaultConfigYAML = []byte(`
LogFile: bitchat-core.log
Nickname: anonymous
RelayMTU: 500
StoreAndForwardRetentionHours: 12
`)

var configFile string
var config Config

// LoadConfig reads the YAML configuration file, falling back to the
// baked-in default when the file is absent or empty.
func LoadConfig(filename string) (status int, err error) {
	var configData []byte
	configFile = filename

	stats, statErr := os.Stat(filename)
	switch {
	case statErr != nil && os.IsNotExist(statErr):
		configData = defaultConfigYAML
	case statErr != nil:
		return ExitErrorConfigAccess, statErr
	case stats.Size() == 0:
		configData = defaultConfigYAML
	default:
		if configData, err = ioutil.ReadFile(filename); err != nil {
			return ExitErrorConfigRead, err
		}
	}

	if err := yaml.Unmarshal(configData, &config); err != nil {
		return ExitErrorConfigParse, err
	}
	return ExitSuccess, nil
}

func saveConfig() {
	if configFile == "" {
		return
	}
	data, err := yaml.Marshal(config)
	if err != nil {
		log.Printf("saveConfig: error marshalling config: %v\n", err)
		return
	}
	if err := ioutil.WriteFile(configFile, data, 0644); err != nil {
		log.Printf("saveConfig: error writing config '%s': %v\n", configFile, err)
	}
}
