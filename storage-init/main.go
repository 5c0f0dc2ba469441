package main

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

func main() {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}
	log.Info("storage init starting")

	connStr := os.Getenv("STORAGE_CONNECTION_STRING")
	tasksTable := os.Getenv("TASKS_TABLE")
	if connStr == "" || tasksTable == "" {
		log.Fatal("missing storage config")
	}

	ctx := context.Background()

	svc, err := aztables.NewServiceClientFromConnectionString(connStr, nil)
	if err != nil {
		log.Fatalf("table service: %v", err)
	}
	client := svc.NewClient(tasksTable)
	if err := createTable(ctx, client); err != nil {
		log.Fatalf("create table %s: %v", tasksTable, err)
	}

	if os.Getenv("SEED_DEMO_DATA") == "1" {
		userID := os.Getenv("SEED_USER_ID")
		if userID == "" {
			userID = "demo-user"
		}
		if err := seedTasks(ctx, client, userID); err != nil {
			log.Fatalf("seed demo data: %v", err)
		}
		log.WithField("user", userID).Info("demo tasks seeded")
	}

	log.Info("storage init complete")
}

func createTable(ctx context.Context, client *aztables.Client) error {
	_, err := client.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists) {
			return nil
		}
		return err
	}
	return nil
}

type demoTask struct {
	title    string
	notes    string
	category string
	done     bool
}

// seedTasks writes a small snapshot so a fresh environment reports
// non-zero statistics for the demo user.
func seedTasks(ctx context.Context, client *aztables.Client, userID string) error {
	demo := []demoTask{
		{title: "Walk the dog", category: "fun", done: true},
		{title: "Buy groceries", notes: "milk, eggs", category: "work"},
		{title: "Write status report", category: "work"},
		{title: "Book dentist appointment", category: "work", done: true},
		{title: "Plan weekend trip", category: "fun"},
	}
	for i, d := range demo {
		ent := map[string]any{
			"PartitionKey": userID,
			"RowKey":       uuid.NewString(),
			"Title":        d.title,
			"Notes":        d.notes,
			"Category":     d.category,
			"Order":        i,
			"Done":         d.done,
		}
		payload, err := json.Marshal(ent)
		if err != nil {
			return err
		}
		if _, err := client.UpsertEntity(ctx, payload, nil); err != nil {
			return err
		}
	}
	return nil
}
