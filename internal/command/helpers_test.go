package command

import logx "relaybot/pkg/logx"

var noLog = logx.Nop()
