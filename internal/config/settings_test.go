package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
)

func TestDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	assert.Equal(t, 5*time.Second, LoadFulfillment().StepInterval)

	sw := LoadSweeper()
	assert.Equal(t, time.Hour, sw.Threshold)
	assert.Equal(t, time.Minute, sw.Interval)
	assert.Equal(t, 100, sw.BatchSize)
	assert.Zero(t, sw.LeaseTTL)

	assert.Equal(t, StoragePostgres, StorageDriver())
	assert.Equal(t, DispatchLocal, LoadDispatch().Driver)
	assert.Equal(t, time.Minute, LoadDispatch().VisibilityTimeout)
	assert.Equal(t, BrokerRabbitMQ, LoadOutbox().Broker)
	assert.Equal(t, []string{"kafka:9092"}, LoadKafka().Brokers)
	assert.False(t, LoadOtel().Enabled)
}

func TestOverrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("fulfillment.step_interval", "250ms")
	viper.Set("sweeper.threshold", "30m")
	viper.Set("storage.driver", StorageMemory)
	viper.Set("dispatch.driver", DispatchRedis)
	viper.Set("dispatch.visibility_timeout", "90s")
	viper.Set("intake.max_retries", 7)
	viper.Set("kafka.brokers", []string{"a:9092", "b:9092"})

	assert.Equal(t, 250*time.Millisecond, LoadFulfillment().StepInterval)
	assert.Equal(t, 30*time.Minute, LoadSweeper().Threshold)
	assert.Equal(t, StorageMemory, StorageDriver())
	assert.Equal(t, DispatchRedis, LoadDispatch().Driver)
	assert.Equal(t, 90*time.Second, LoadDispatch().VisibilityTimeout)
	assert.Equal(t, uint64(7), LoadIntake().MaxRetries)
	assert.Equal(t, []string{"a:9092", "b:9092"}, LoadKafka().Brokers)
}
