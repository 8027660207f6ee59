package config

import (
	"errors"
	"strings"

	"github.com/spf13/viper"
)

// ReadIn wires env overrides and reads the first config file found.
// The envPrefix is used for environment variable lookups (e.g. HOSTESS_GRPC_ADDR).
// A missing file is fine unless configFile names one explicitly.
func ReadIn(v *viper.Viper, envPrefix, name, configFile string, configPaths ...string) error {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName(name)
		for _, p := range configPaths {
			v.AddConfigPath(p)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && configFile == "" {
			return nil
		}
		return err
	}
	return nil
}

// ClientAddr returns the hostess gRPC address for client commands.
// Priority: --hostess flag > HOSTESS_ADDR env > grpc.addr > default.
func ClientAddr(v *viper.Viper) string {
	for _, key := range []string{"hostess", "addr", "grpc.addr"} {
		if addr := strings.TrimSpace(v.GetString(key)); addr != "" {
			return dialable(addr)
		}
	}
	return dialable(Defaults.GRPCAddr)
}

func dialable(addr string) string {
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
