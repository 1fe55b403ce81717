// Command davsync performs a sync-collection REPORT against one or more
// WebDAV collections and prints the changes since the provided sync token.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"

	davclient "github.com/emersion/go-davclient"
	"github.com/emersion/go-davclient/internal"
)

func main() {
	var (
		endpoint string
		token    string
		limit    int
		depthStr string
		username string
		password string
	)
	flag.StringVar(&endpoint, "endpoint", "", "WebDAV endpoint URL")
	flag.StringVar(&token, "token", "", "sync token of the previous run (empty for an initial sync)")
	flag.IntVar(&limit, "limit", 0, "advisory limit on the number of returned changes")
	flag.StringVar(&depthStr, "depth", "1", "sync depth: \"1\" or \"infinity\" (rarely supported)")
	flag.StringVar(&username, "username", "", "basic auth username")
	flag.StringVar(&password, "password", "", "basic auth password")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options...] [collection path...]\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if endpoint == "" {
		flag.Usage()
		os.Exit(2)
	}

	depth, err := internal.ParseDepth(depthStr)
	if err != nil {
		log.Fatal(err)
	}
	if depth == internal.DepthZero {
		log.Fatal("davsync: a sync needs a depth of 1 or infinity")
	}

	paths := flag.Args()
	if len(paths) == 0 {
		paths = []string{""}
	}

	client, err := davclient.NewClient(nil, endpoint)
	if err != nil {
		log.Fatal(err)
	}
	if username != "" {
		client.SetBasicAuth(username, password)
	}

	var mu sync.Mutex
	var g errgroup.Group
	for _, path := range paths {
		path := path
		col := client.Collection(path)
		g.Go(func() error {
			err := col.Sync(&davclient.SyncQuery{
				SyncToken:     token,
				InfiniteDepth: depth == internal.DepthInfinity,
				Limit:         limit,
			})
			if err != nil {
				return fmt.Errorf("sync of %q: %w", path, err)
			}

			mu.Lock()
			defer mu.Unlock()
			fmt.Printf("%v:\n", col.URL())
			for i := range col.Members {
				member := &col.Members[i]
				if p, ok := member.Prop(davclient.GetETagName).(*davclient.GetETag); ok {
					fmt.Printf("  changed %v (etag %v)\n", member.Href.Path, p.ETag)
				} else {
					fmt.Printf("  changed %v\n", member.Href.Path)
				}
			}
			for i := range col.RemovedMembers {
				fmt.Printf("  removed %v\n", col.RemovedMembers[i].Href.Path)
			}
			fmt.Printf("  sync token: %v\n", col.SyncToken)
			if col.FurtherResults {
				fmt.Printf("  result set truncated, re-run with the token above\n")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Fatal(err)
	}
}
