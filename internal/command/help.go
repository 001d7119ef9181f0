package command

const helpText = `Available commands:
  start <nodeId>                                 run a consensus round on a node
  rollback <nodeId>                              roll back a node's current round
  status <nodeId>                                show one node
  status_all                                     show every node
  create_transaction <sender> <receiver> <amt>   queue a transfer on the sender
  add_node                                       register a new node
  byzantine <nodeId>                             discount votes from a node
  balances                                       show ledger balances
  network <drop-rate> <max-delay-ms>             change simulated network conditions
  help                                           show this text
  exit                                           quit`

func Help() string {
	return helpText
}
