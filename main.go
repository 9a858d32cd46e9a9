package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/vitalink-io/vitalink/caching"
	"github.com/vitalink-io/vitalink/config"
	"github.com/vitalink-io/vitalink/database"
	"github.com/vitalink-io/vitalink/dbsync"
	"github.com/vitalink-io/vitalink/logger"
	"github.com/vitalink-io/vitalink/web"
	"github.com/vitalink-io/vitalink/web/service"

	"github.com/joho/godotenv"
	"github.com/op/go-logging"
	"github.com/spf13/cobra"
)

func runWebServer() {
	log.Printf("%v %v", config.GetName(), config.GetVersion())

	switch config.GetLogLevel() {
	case config.Debug:
		logger.InitLogger(logging.DEBUG)
	case config.Info:
		logger.InitLogger(logging.INFO)
	case config.Notice:
		logger.InitLogger(logging.NOTICE)
	case config.Warn:
		logger.InitLogger(logging.WARNING)
	case config.Error:
		logger.InitLogger(logging.ERROR)
	default:
		log.Fatal("unknown log level:", config.GetLogLevel())
	}

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatal(err)
	}

	var server *web.Server

	server = web.NewServer()
	err = server.Start()
	if err != nil {
		log.Println(err)
		return
	}

	sigCh := make(chan os.Signal, 1)
	// Trap shutdown signals
	signal.Notify(sigCh, syscall.SIGHUP, syscall.SIGTERM)
	for {
		sig := <-sigCh

		switch sig {
		case syscall.SIGHUP:
			err := server.Stop()
			if err != nil {
				logger.Warning("stop server err:", err)
			}
			server = web.NewServer()
			err = server.Start()
			if err != nil {
				log.Println(err)
				return
			}
		default:
			err := server.Stop()
			if err != nil {
				return
			}
			return
		}
	}
}

func showSetting() {
	fmt.Println("current node settings as follows:")
	fmt.Println("listen:", config.GetListenAddr())
	fmt.Println("database:", config.GetDBPath())
	fmt.Println("mqtt broker:", config.GetMqttBroker())

	syncCfg, err := dbsync.LoadConfig()
	if err != nil {
		fmt.Println("user db sync: disabled:", err)
		return
	}
	fmt.Println("sync role:", syncCfg.Role)
	fmt.Println("sync peer:", syncCfg.PeerURL)
	fmt.Println("sync interval:", syncCfg.IntervalDuration())
}

func resetPassword(username string, password string) {
	if password == "" {
		fmt.Println("password is required")
		return
	}

	err := database.InitDB(config.GetDBPath())
	if err != nil {
		fmt.Println(err)
		return
	}

	adminService := service.NewUserAdminService(database.GetDB(), caching.NewCache())
	err = adminService.ResetPassword(username, password)
	if err != nil {
		fmt.Println("reset password failed:", err)
	} else {
		fmt.Println("reset password success")
	}
}

func migrateDb() {
	err := database.InitDB(config.GetDBPath())
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println("Start migrating database...")
	if err := database.BackfillUpdatedAt(database.GetDB()); err != nil {
		fmt.Println("backfill updated_at failed:", err)
		return
	}
	userService := service.NewUserService(database.GetDB(), caching.NewCache())
	if removed, err := userService.CleanupExpiredSessions(); err != nil {
		fmt.Println("cleanup sessions failed:", err)
	} else if removed > 0 {
		fmt.Printf("removed %v expired sessions\n", removed)
	}
	fmt.Println("Migration done!")
}

func main() {
	// Node-specific settings (peer URL, sync token, broker address) live in
	// a .env file next to the binary on both nodes.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Println("load .env:", err)
	}

	var rootCmd = &cobra.Command{
		Use: "vitalink",
	}

	var runCmd = &cobra.Command{
		Use:   "run",
		Short: "Run the dashboard server",
		Run: func(cmd *cobra.Command, args []string) {
			runWebServer()
		},
	}

	var migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Backfill replication stamps and prune expired sessions",
		Run: func(cmd *cobra.Command, args []string) {
			migrateDb()
		},
	}

	var settingCmd = &cobra.Command{
		Use:   "setting",
		Short: "Inspect or change node settings",
	}

	var showCmd = &cobra.Command{
		Use:   "show",
		Short: "Show current settings",
		Run: func(cmd *cobra.Command, args []string) {
			showSetting()
		},
	}

	var resetPasswordCmd = &cobra.Command{
		Use:   "reset-password",
		Short: "Reset the password of an account",
		Run: func(cmd *cobra.Command, args []string) {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			resetPassword(username, password)
		},
	}

	resetPasswordCmd.Flags().String("username", "admin", "account to reset")
	resetPasswordCmd.Flags().String("password", "", "new password")

	settingCmd.AddCommand(showCmd, resetPasswordCmd)

	rootCmd.AddCommand(runCmd, migrateCmd, settingCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
