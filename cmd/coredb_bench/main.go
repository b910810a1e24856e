package main

import (
	"bufio"
	"flag"
	"fmt"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"coredb/pkg/database"

	"github.com/google/uuid"
)

var startupDelay = 100 * time.Millisecond
var maxJitterMs int64 = 10

func setupCloseHandler(db *database.Database) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-c
		db.Close()
		os.Exit(0)
	}()
}

func jitter() time.Duration {
	return time.Duration(rand.Int63n(maxJitterMs)+1) * time.Millisecond
}

func parseWorkload(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	var workload []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		workload = append(workload, scanner.Text())
	}
	return workload, scanner.Err()
}

func handleWorkload(c chan string, wg *sync.WaitGroup, workload []string, idx, n int) {
	defer wg.Done()
	for i := idx; i < len(workload); i += n {
		time.Sleep(jitter())
		c <- workload[i]
	}
}

// coredb_bench drives a recorded command workload against a freshly
// created table, optionally from several concurrent goroutines, to
// exercise the storage core under contention outside of a network
// client.
func main() {
	indexFlag := flag.String("index", "", "choose index: [btree,hash] (required)")
	workloadFlag := flag.String("workload", "", "workload file (required)")
	nFlag := flag.Int("n", 1, "number of goroutines to drive the workload from")
	dbFlag := flag.String("db", "data/bench.db", "path to database file")
	flag.Parse()

	os.Remove(*dbFlag)
	db, err := database.Open(*dbFlag)
	if err != nil {
		panic(err)
	}
	defer db.Close()
	setupCloseHandler(db)

	r := database.DatabaseRepl(db)
	c := make(chan string)
	go r.RunChan(c, uuid.New(), "")
	time.Sleep(startupDelay)

	switch *indexFlag {
	case "btree":
		c <- "create btree table t"
	case "hash":
		c <- "create hash table t"
	default:
		fmt.Println("must specify -index [btree,hash]")
		return
	}

	if *workloadFlag == "" {
		fmt.Println("no workload file given")
		return
	}
	workload, err := parseWorkload(*workloadFlag)
	if err != nil {
		fmt.Println(err)
		return
	}
	time.Sleep(startupDelay)

	var wg sync.WaitGroup
	for i := 0; i < *nFlag; i++ {
		wg.Add(1)
		go handleWorkload(c, &wg, workload, i, *nFlag)
	}
	wg.Wait()

	table, err := db.GetTable("t")
	if err != nil {
		fmt.Println("error getting table t")
		return
	}
	rows, err := table.Select()
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Printf("workload complete: %d rows in table t\n", len(rows))
}
