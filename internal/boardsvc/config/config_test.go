package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("ROOT_FOLDER_NAME", "")
	t.Setenv("SUPER_ADMINS", "")
	t.Setenv("MAX_PAYLOAD_BYTES", "")
	t.Setenv("AUTOGEN_INTERVAL", "")

	c := Load()
	assert.Equal(t, DriverMongo, c.StoreDriver)
	assert.Equal(t, "Opsboard Boards", c.RootFolderName)
	assert.Empty(t, c.SuperAdmins)
	assert.Equal(t, DefaultMaxPayloadBytes, c.MaxPayloadBytes)
	assert.Equal(t, time.Hour, c.AutogenInterval)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", DriverPostgres)
	t.Setenv("SUPER_ADMINS", " root@ops.test, ,boss@ops.test ")
	t.Setenv("MAX_PAYLOAD_BYTES", "2048")
	t.Setenv("AUTOGEN_INTERVAL", "15m")

	c := Load()
	assert.Equal(t, DriverPostgres, c.StoreDriver)
	assert.Equal(t, []string{"root@ops.test", "boss@ops.test"}, c.SuperAdmins)
	assert.Equal(t, 2048, c.MaxPayloadBytes)
	assert.Equal(t, 15*time.Minute, c.AutogenInterval)
}
