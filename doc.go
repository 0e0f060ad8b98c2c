/*
Package scoserv is a store for research records and an orchestrator for the
predictive model runs computed over them.

Subjects (anatomy directories), stimulus images, image groups, experiments and
functional data are kept as soft-deletable records in a document backend, with
their files in per-kind directories. A model run references an experiment and
moves through Idle, Running, Success or Failed; the Success state points at a
functional-data record holding the result archive.

# Dispatch

Creating a run hands a RunRequest to the configured transport:

  - direct: spawn "scoserv run <run-id>" as a detached process.
  - redis: push onto a reliable list queue consumed by "scoserv worker".
  - amqp: publish to a durable RabbitMQ queue consumed by "scoserv worker".
  - socket: send the request to a "scoserv engine" over TCP.

Every worker ends in Engine.Execute, which runs the registered model and
stores its output.

# Usage

	cfg := config.Default()
	svc, err := scoserv.New(ctx, cfg, scoserv.WithModel("sco", attribute.ModelParameters(), model))
	if err != nil {
		log.Fatal(err)
	}
	defer svc.Close()

	run, err := svc.Data().CreateModelRun(ctx, experimentID, "Run 1", "sco", nil)
*/
package scoserv
