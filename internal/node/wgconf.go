// Copyright (c) 2026 Reseda Authors
// SPDX-License-Identifier: MIT

package node

import (
	"fmt"
	"os"
	"strings"
)

const wgConfPath = "/etc/wireguard/reseda.conf"

// wgConfigFile renders the [Interface] section written to disk at
// bootstrap. Peer entries are never written here — they are programmed
// imperatively via wg set once the interface is up.
func wgConfigFile(address, privateKey string, listenPort int, dns string) string {
	lines := []string{
		"[Interface]",
		fmt.Sprintf("Address=%s", address),
		fmt.Sprintf("PrivateKey=%s", strings.TrimSpace(privateKey)),
		fmt.Sprintf("ListenPort=%d", listenPort),
		fmt.Sprintf("DNS=%s", dns),
		fmt.Sprintf("PostUp=iptables -A FORWARD -i %s -j ACCEPT; iptables -t nat -A POSTROUTING -o eth0 -j MASQUERADE", interfaceName),
		fmt.Sprintf("PostDown=iptables -D FORWARD -i %s -j ACCEPT; iptables -t nat -D POSTROUTING -o eth0 -j MASQUERADE", interfaceName),
	}
	return strings.Join(lines, "\n") + "\n"
}

func writeWGConfig(address, privateKey string, listenPort int, dns string) error {
	contents := wgConfigFile(address, privateKey, listenPort, dns)
	return os.WriteFile(wgConfPath, []byte(contents), 0600)
}
