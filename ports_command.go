package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"sbustui/internal/link"
)

func newPortsCommand() *cobra.Command {
	return newPortsCommandWith(link.ListPorts)
}

func newPortsCommandWith(list func() ([]link.PortInfo, error)) *cobra.Command {
	return &cobra.Command{
		Use:         "ports",
		Short:       "List serial ports",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ports, err := list()
			if err != nil {
				return fmt.Errorf("list serial ports: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(ports) == 0 {
				fmt.Fprintln(out, "No serial ports found")
				return nil
			}
			rows := make([][]string, 0, len(ports))
			for _, p := range ports {
				usb := ""
				if p.USB {
					usb = p.VID + ":" + p.PID
				}
				rows = append(rows, []string{p.Name, usb, p.Serial, p.Product})
			}
			fmt.Fprintln(out, renderTable([]string{"Port", "USB", "Serial", "Product"}, rows, nil))
			return nil
		},
	}
}
