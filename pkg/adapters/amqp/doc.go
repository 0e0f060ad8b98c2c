/*
Package amqp dispatches run requests through a durable RabbitMQ queue.

The Publisher declares the queue and publishes persistent JSON messages. The
Consumer takes one message at a time (prefetch 1) and acknowledges it only
after the run handler returned, so an interrupted worker leaves the message
for redelivery.
*/
package amqp
