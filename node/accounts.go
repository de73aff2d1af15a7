package node

import (
	"io"
	"strconv"

	"github.com/NethermindEth/devnet/genesis"
	"github.com/olekukonko/tablewriter"
)

func printAccounts(w io.Writer, accounts []genesis.DeployedAccount) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Address", "Public key", "Private key", "Balance"})
	table.SetAutoWrapText(false)
	for _, account := range accounts {
		privateKey := "-"
		if account.PrivateKey != nil {
			privateKey = account.PrivateKey.String()
		}
		table.Append([]string{
			account.Address.String(),
			account.PublicKey.String(),
			privateKey,
			strconv.FormatUint(account.Balance, 10),
		})
	}
	table.Render()
}
