package config

import (
	"os"
	"strconv"

	"github.com/pkg/errors"
)

func (c *Config) applyEnv() error {
	setString(&c.InstanceId, "INSTANCE_ID")
	setString(&c.Region, "AWS_REGION")
	setString(&c.Timezone, "TIMEZONE")
	setString(&c.LogLevel, "VPNCTL_LOG_LEVEL")
	setString(&c.Handler, "VPNCTL_HANDLER")
	setString(&c.HistoryPath, "VPNCTL_HISTORY_FILE")

	if err := setFloat64(&c.Monitor.ThresholdMb, "MONITOR_THRESHOLD_MB"); err != nil {
		return err
	}
	if err := setFloat64(&c.Monitor.WindowHours, "MONITOR_WINDOW_HRS"); err != nil {
		return err
	}
	if err := setInt(&c.Monitor.PeriodSeconds, "MONITOR_PERIOD_SECONDS"); err != nil {
		return err
	}

	if err := setInt(&c.Start.WeekdayStartHour, "WEEKDAY_START_HOUR"); err != nil {
		return err
	}
	if err := setInt(&c.Start.WeekdayEndHour, "WEEKDAY_END_HOUR"); err != nil {
		return err
	}
	setString(&c.Start.NotificationTopicArn, "START_NOTIFICATION_TOPIC_ARN")

	setString(&c.Registrar.ClientSubnetCidr, "CLIENT_SUBNET_CIDR")
	setString(&c.Registrar.ServerAddress, "SERVER_ADDRESS")
	setString(&c.Registrar.Interface, "WG_INTERFACE")
	setString(&c.Registrar.ConfPath, "WG_CONF_PATH")
	if err := setInt(&c.Registrar.CommandTimeoutSeconds, "SSM_COMMAND_TIMEOUT_SECONDS"); err != nil {
		return err
	}
	if err := setInt(&c.Registrar.PollIntervalSeconds, "REMOTE_POLL_INTERVAL_SECONDS"); err != nil {
		return err
	}
	setString(&c.Registrar.Executor, "REMOTE_EXECUTOR")
	setString(&c.Registrar.SSH.Host, "SSH_HOST")
	setString(&c.Registrar.SSH.User, "SSH_USER")
	setString(&c.Registrar.SSH.KeyPath, "SSH_KEY_PATH")
	setString(&c.Registrar.SSH.KnownHostsPath, "SSH_KNOWN_HOSTS")

	setString(&c.Influx.Url, "INFLUX_URL")
	setString(&c.Influx.Token, "INFLUX_TOKEN")
	setString(&c.Influx.Org, "INFLUX_ORG")
	setString(&c.Influx.Bucket, "INFLUX_BUCKET")

	setString(&c.Serve.ListenAddr, "VPNCTL_LISTEN_ADDR")
	setString(&c.Serve.AdminUser, "VPNCTL_ADMIN_USER")
	setString(&c.Serve.AdminPasswordHash, "VPNCTL_ADMIN_PASSWORD_HASH")
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// numeric settings fail loudly; a typo in a threshold must not silently fall back
func setInt(dst *int, key string) error {
	if v := os.Getenv(key); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return errors.Wrapf(err, "config: %s", key)
		}
		*dst = p
	}
	return nil
}

func setFloat64(dst *float64, key string) error {
	if v := os.Getenv(key); v != "" {
		p, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return errors.Wrapf(err, "config: %s", key)
		}
		*dst = p
	}
	return nil
}
