package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "gristsync",
	Short: "gristsync pulls records from a REST source into a Grist-style table",
	Long: `gristsync runs synchronization jobs: it fetches records from a REST API,
maps them onto destination columns, creates missing columns, and inserts,
updates or skips rows keyed on a unique field.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "job config file (default is ./gristsync.yaml)")
}

func initConfig() {
	if cfgFile == "" {
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName("gristsync")
		if err := viper.ReadInConfig(); err == nil {
			cfgFile = viper.ConfigFileUsed()
		} else {
			cfgFile = "gristsync.yaml"
		}
	}
	viper.SetEnvPrefix("GRISTSYNC")
	viper.AutomaticEnv()
}
