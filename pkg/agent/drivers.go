// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package agent

import (
	"fmt"
	"strconv"

	"github.com/esnode-io/esnode-core/pkg/config"
	"github.com/esnode-io/esnode-core/pkg/driver"
	"github.com/esnode-io/esnode-core/pkg/driver/dnp3"
	"github.com/esnode-io/esnode-core/pkg/driver/modbus"
	"github.com/esnode-io/esnode-core/pkg/driver/mqtt"
	"github.com/esnode-io/esnode-core/pkg/driver/snmp"
)

// buildDrivers constructs one driver.Driver per configured field-bus
// instance. Per-protocol register/OID/topic maps are a richer shape than
// the flat Params map a file+env+CLI loader hands this core, so this
// factory wires only the connection-level fields; a deployment needing
// specific register maps configures them through a fuller loader that
// constructs drivers directly instead of through this path.
func buildDrivers(configs []config.DriverConfig) ([]driver.Driver, error) {
	drivers := make([]driver.Driver, 0, len(configs))
	for _, dc := range configs {
		d, err := buildDriver(dc)
		if err != nil {
			return nil, fmt.Errorf("driver %q: %w", dc.ID, err)
		}
		drivers = append(drivers, d)
	}
	return drivers, nil
}

func buildDriver(dc config.DriverConfig) (driver.Driver, error) {
	switch dc.Protocol {
	case "modbus":
		return modbus.New(dc.ID, modbus.Config{Addr: dc.Target}), nil
	case "dnp3":
		return dnp3.New(dc.ID, dnp3.Config{Addr: dc.Target}), nil
	case "snmp":
		return snmp.New(dc.ID, snmp.Config{
			Target:    dc.Target,
			Community: dc.Params["community"],
		}), nil
	case "mqtt":
		port, _ := strconv.ParseUint(dc.Params["port"], 10, 16)
		return mqtt.New(dc.ID, mqtt.Config{
			Broker:   dc.Target,
			Port:     uint16(port),
			ClientID: dc.Params["client_id"],
			Username: dc.Params["username"],
			Password: dc.Params["password"],
		}), nil
	default:
		return nil, fmt.Errorf("unknown protocol %q", dc.Protocol)
	}
}
