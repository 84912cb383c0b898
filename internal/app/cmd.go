package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はBFFゲートウェイのHTTPサーバーを起動する。
	CommandServe Command = "serve"
	// CommandWorker は期限切れセッションと受験状態のクリーンアップを定期実行する。
	CommandWorker Command = "worker"
	// CommandMigrate は埋め込みSQLマイグレーションを適用して終了する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを叩いて終了する。
	// シェルのないdistrolessイメージのHEALTHCHECK用。
	CommandHealthcheck Command = "healthcheck"
)

var commands = map[string]Command{
	string(CommandServe):       CommandServe,
	string(CommandWorker):      CommandWorker,
	string(CommandMigrate):     CommandMigrate,
	string(CommandHealthcheck): CommandHealthcheck,
}

// ParseCommand は最初の引数をサブコマンドとして解釈する。
// 引数がない、または未知のサブコマンドの場合はCommandServeを返す。2番目以降の引数は無視する。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}
	if cmd, ok := commands[args[0]]; ok {
		return cmd
	}
	return CommandServe
}
