package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"

	"coredb/pkg/config"
	"coredb/pkg/repl"

	"coredb/pkg/concurrency"
	"coredb/pkg/database"
	"coredb/pkg/recovery"

	"github.com/google/uuid"
)

const defaultPort = 8335

func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		db.Close()
		os.Exit(0)
	}()
}

func startServer(r *repl.REPL, tm *concurrency.TransactionManager, prompt string, port int) {
	handleConn := func(c net.Conn) {
		clientID := uuid.New()
		defer c.Close()
		if tm != nil {
			defer tm.Commit(clientID)
		}
		r.Run(clientID, prompt, c, c)
	}
	listener, err := net.Listen("tcp", fmt.Sprintf(":%v", port))
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("%v server started listening on localhost:%v\n", config.DBName,
		listener.Addr().(*net.TCPAddr).Port)
	for {
		conn, err := listener.Accept()
		if err != nil {
			log.Print(err)
			continue
		}
		go handleConn(conn)
	}
}

func main() {
	promptFlag := flag.Bool("c", true, "use prompt?")
	layerFlag := flag.String("layer", "storage", "choose layer: [storage,concurrency,recovery]")
	dbFlag := flag.String("db", "data/coredb.db", "path to database file")
	logFlag := flag.String("log", "data/"+config.LogFileName, "path to write-ahead log file")
	portFlag := flag.Int("p", defaultPort, "port number")
	flag.Parse()

	var db *database.Database
	var err error
	if *layerFlag == "recovery" {
		db, err = recovery.Prime(*dbFlag)
	} else {
		db, err = database.Open(*dbFlag)
	}
	if err != nil {
		panic(err)
	}
	defer db.Close()
	setupCloseHandler(db)

	prompt := config.GetPrompt(*promptFlag)
	var r *repl.REPL
	var tm *concurrency.TransactionManager
	server := false

	switch *layerFlag {
	case "storage":
		r = database.DatabaseRepl(db)
	case "concurrency":
		server = true
		lm := concurrency.NewResourceLockManager()
		tm = concurrency.NewTransactionManager(lm)
		r = concurrency.TransactionREPL(db, tm)
	case "recovery":
		server = true
		if err := db.CreateLogFile(*logFlag); err != nil {
			fmt.Println(err)
			return
		}
		lm := concurrency.NewResourceLockManager()
		tm = concurrency.NewTransactionManager(lm)
		rm, err := recovery.NewRecoveryManager(db, tm, *logFlag)
		if err != nil {
			fmt.Println(err)
			return
		}
		if err := rm.Recover(); err != nil {
			fmt.Println(err)
			return
		}
		r = recovery.RecoveryREPL(db, tm, rm)
	default:
		fmt.Println("must specify -layer [storage,concurrency,recovery]")
		return
	}

	if server {
		startServer(r, tm, prompt, *portFlag)
	} else {
		r.Run(uuid.New(), prompt, os.Stdin, os.Stdout)
	}
}
