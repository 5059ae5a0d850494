package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/iufc-admission-api/pkg/config"
)

func TestDSN(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{
		Host:            "db",
		Port:            5432,
		User:            "iufc",
		Password:        "secret",
		Name:            "iufc",
		SSLMode:         "disable",
		ApplicationName: "iufc-admission-api",
		ConnectTimeout:  5 * time.Second,
	})
	assert.Equal(t, "postgres://iufc:secret@db:5432/iufc?application_name=iufc-admission-api&connect_timeout=5&sslmode=disable", dsn)
}

func TestDSNEscapesPassword(t *testing.T) {
	dsn := DSN(config.DatabaseConfig{Host: "db", Port: 5432, User: "iufc", Password: "p@ss/word", Name: "iufc"})
	assert.Equal(t, "postgres://iufc:p%40ss%2Fword@db:5432/iufc", dsn)
}
