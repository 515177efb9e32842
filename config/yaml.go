package config

import (
	"bytes"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

func parseYaml(out interface{}, blob []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(blob))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("can't parse yaml: %w", err)
	}
	return nil
}

// Duration is a time.Duration parsed from yaml scalars like "30s" or "2h".
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("can't parse duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Address is a checksummed EVM address parsed from yaml.
type Address common.Address

func (a *Address) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if !common.IsHexAddress(raw) {
		return fmt.Errorf("invalid address %q", raw)
	}
	*a = Address(common.HexToAddress(raw))
	return nil
}

func (a Address) Addr() common.Address {
	return common.Address(a)
}

func (a Address) IsZero() bool {
	return common.Address(a) == (common.Address{})
}

// Level is a logrus log level parsed from yaml.
type Level logrus.Level

func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	v, err := logrus.ParseLevel(raw)
	if err != nil {
		return fmt.Errorf("can't parse log level %q: %w", raw, err)
	}
	*l = Level(v)
	return nil
}

func (l Level) Level() logrus.Level {
	return logrus.Level(l)
}
