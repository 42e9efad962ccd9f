package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"github.com/vladislavdragonenkov/storefront/internal/admin"
	"github.com/vladislavdragonenkov/storefront/internal/app"
	"github.com/vladislavdragonenkov/storefront/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/storefront/internal/health"
	"github.com/vladislavdragonenkov/storefront/internal/messaging/kafka"
)

var (
	errUsage     = errors.New("invalid arguments")
	errEmptyCart = errors.New("cart is empty")
)

func (r *runner) productsCommand() *cli.Command {
	return &cli.Command{
		Name:  "products",
		Usage: "list the catalog",
		Action: func(c *cli.Context) error {
			return r.withSession(c, func(s *app.Session) error {
				products, err := s.Catalog.ListProducts(c.Context)
				if err != nil {
					return err
				}
				r.printProducts(products)
				return nil
			})
		},
	}
}

func (r *runner) cartCommand() *cli.Command {
	return &cli.Command{
		Name:  "cart",
		Usage: "inspect and change the shopping cart",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "print cart contents and total",
				Action: func(c *cli.Context) error {
					return r.withSession(c, func(s *app.Session) error {
						r.printCart(s.Cart.Snapshot())
						return nil
					})
				},
			},
			{
				Name:      "add",
				Usage:     "add one unit of a catalog product",
				ArgsUsage: "<product-id>",
				Action: func(c *cli.Context) error {
					id, err := productIDArg(c, 0)
					if err != nil {
						return err
					}
					return r.withSession(c, func(s *app.Session) error {
						product, err := s.Catalog.GetProduct(c.Context, id)
						if err != nil {
							return err
						}
						if err := s.Cart.AddItem(c.Context, product); err != nil {
							return err
						}
						r.printCart(s.Cart.Snapshot())
						return nil
					})
				},
			},
			{
				Name:      "remove",
				Usage:     "remove a line from the cart",
				ArgsUsage: "<product-id>",
				Action: func(c *cli.Context) error {
					id, err := productIDArg(c, 0)
					if err != nil {
						return err
					}
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Cart.RemoveItem(c.Context, id); err != nil {
							return err
						}
						r.printCart(s.Cart.Snapshot())
						return nil
					})
				},
			},
			{
				Name:      "set",
				Usage:     "set line quantity (0 or less removes the line)",
				ArgsUsage: "<product-id> <quantity>",
				Action: func(c *cli.Context) error {
					id, err := productIDArg(c, 0)
					if err != nil {
						return err
					}
					qty, err := strconv.Atoi(c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("%w: quantity must be an integer", errUsage)
					}
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Cart.SetQuantity(c.Context, id, qty); err != nil {
							return err
						}
						r.printCart(s.Cart.Snapshot())
						return nil
					})
				},
			},
			{
				Name:  "clear",
				Usage: "empty the cart",
				Action: func(c *cli.Context) error {
					return r.withSession(c, func(s *app.Session) error {
						return s.Cart.Clear(c.Context)
					})
				},
			},
		},
	}
}

func (r *runner) checkoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkout",
		Usage: "submit the cart as an order",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "name", Usage: "full name"},
			&cli.StringFlag{Name: "email", Usage: "email"},
			&cli.StringFlag{Name: "address", Usage: "street address"},
			&cli.StringFlag{Name: "city", Usage: "city"},
			&cli.StringFlag{Name: "zip", Usage: "zip code"},
			&cli.StringFlag{Name: "payment", Value: string(domain.PaymentMethodCashOnDelivery), Usage: "payment method: cod|card"},
		},
		Action: func(c *cli.Context) error {
			form := domain.ShippingForm{
				FullName:      c.String("name"),
				Email:         c.String("email"),
				Address:       c.String("address"),
				City:          c.String("city"),
				ZipCode:       c.String("zip"),
				PaymentMethod: domain.PaymentMethod(c.String("payment")),
			}
			if problems := form.Validate(); len(problems) > 0 {
				return fmt.Errorf("%w: %w", errUsage, errors.Join(problems...))
			}

			return r.withSession(c, func(s *app.Session) error {
				if !s.Checkout.CanSubmit(form) {
					return errEmptyCart
				}
				id, err := s.Checkout.Submit(c.Context, form)
				if err != nil {
					return err
				}
				fmt.Fprintf(r.out, "Order reference: %s\n", id.Reference())
				return nil
			})
		},
	}
}

func (r *runner) adminCommand() *cli.Command {
	return &cli.Command{
		Name:  "admin",
		Usage: "order administration",
		Subcommands: []*cli.Command{
			{
				Name:  "orders",
				Usage: "list recent orders",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "filter", Usage: "case-insensitive search by reference, name, email or status"},
				},
				Action: func(c *cli.Context) error {
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Board.Refresh(c.Context); err != nil {
							return err
						}
						r.printOrders(s.Board.Filter(c.String("filter")), s.Board.ActiveCount())
						return nil
					})
				},
			},
			{
				Name:  "stats",
				Usage: "sales summary over recent orders",
				Action: func(c *cli.Context) error {
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Board.Refresh(c.Context); err != nil {
							return err
						}
						products, err := s.Catalog.ListProducts(c.Context)
						if err != nil {
							return err
						}
						r.printStats(s.Board.Stats(time.Now()), len(products))
						return nil
					})
				},
			},
			{
				Name:      "status",
				Usage:     "change order status",
				ArgsUsage: "<order-id> <pending|delivered|cancelled>",
				Action: func(c *cli.Context) error {
					id, err := parseOrderID(c.Args().Get(0))
					if err != nil {
						return err
					}
					status, err := domain.ParseOrderStatus(c.Args().Get(1))
					if err != nil {
						return err
					}
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Board.Refresh(c.Context); err != nil {
							return err
						}
						order, err := s.Board.SetStatus(c.Context, id, status)
						if err != nil {
							return err
						}
						fmt.Fprintf(r.out, "%s is now %s\n", order.ID.Reference(), order.Status)
						return nil
					})
				},
			},
			{
				Name:      "delete",
				Usage:     "delete an order after confirmation",
				ArgsUsage: "<order-id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "confirm without prompting"},
				},
				Action: func(c *cli.Context) error {
					id, err := parseOrderID(c.Args().Get(0))
					if err != nil {
						return err
					}
					return r.withSession(c, func(s *app.Session) error {
						if err := s.Board.Refresh(c.Context); err != nil {
							return err
						}
						if err := s.Board.Delete(c.Context, id, r.confirm(c.Bool("yes"))); err != nil {
							return err
						}
						fmt.Fprintf(r.out, "%s deleted\n", id.Reference())
						return nil
					})
				},
			},
			{
				Name:  "watch",
				Usage: "reprint the order list on every refresh until interrupted",
				Flags: []cli.Flag{
					&cli.DurationFlag{Name: "interval", Usage: "refresh interval (defaults to STOREFRONT_REFRESH_INTERVAL)"},
				},
				Action: func(c *cli.Context) error {
					return r.withSession(c, func(s *app.Session) error {
						interval := s.Refresher.Interval()
						if c.IsSet("interval") {
							interval = c.Duration("interval")
						}
						refresher := admin.NewRefresher(s.Board,
							admin.WithRefreshLogger(log.WithField("component", "admin-refresher")),
							admin.WithInterval(interval),
							admin.WithOnUpdate(func() {
								r.printOrders(s.Board.Orders(), s.Board.ActiveCount())
							}),
						)
						refresher.Run(c.Context)
						return nil
					})
				},
			},
		},
	}
}

// confirm спрашивает подтверждение удаления, если не передан --yes.
func (r *runner) confirm(assumeYes bool) admin.Confirm {
	return func(order domain.Order) bool {
		if assumeYes {
			return true
		}
		fmt.Fprintf(r.out, "%s (%s) %s [y/N]: ", admin.ConfirmPrompt, order.ID.Reference(), order.CustomerName)
		line, _ := bufio.NewReader(r.in).ReadString('\n')
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes"
	}
}

func (r *runner) eventsCommand() *cli.Command {
	return &cli.Command{
		Name:  "events",
		Usage: "tail storefront order events and notifications from kafka",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "group", Usage: "consumer group (random when empty)"},
		},
		Action: func(c *cli.Context) error {
			if len(r.cfg.KafkaBrokers) == 0 {
				return fmt.Errorf("%w: kafka brokers are not configured", errUsage)
			}
			group := c.String("group")
			if group == "" {
				group = "storefront-cli-" + uuid.NewString()
			}

			consumer, err := kafka.NewConsumer(r.cfg.KafkaBrokers, group,
				[]string{kafka.TopicOrderEvents, kafka.TopicNotifications},
				r.printEvent, log.WithField("component", "storefront-cli"))
			if err != nil {
				return err
			}
			if err := consumer.Start(c.Context); err != nil {
				return err
			}
			<-c.Context.Done()
			return consumer.Stop()
		},
	}
}

func (r *runner) printEvent(_ context.Context, message *sarama.ConsumerMessage) error {
	switch message.Topic {
	case kafka.TopicOrderEvents:
		event, err := kafka.ParseOrderEvent(message)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s  %-16s %s %s\n", event.Timestamp.Format("15:04:05"), event.EventType, event.Reference, event.Status)
	case kafka.TopicNotifications:
		event, err := kafka.ParseNotificationEvent(message)
		if err != nil {
			return err
		}
		fmt.Fprintf(r.out, "%s  %-16s [%s] %s\n", event.Timestamp.Format("15:04:05"), event.EventType, event.Level, event.Message)
	}
	return nil
}

func (r *runner) healthCommand() *cli.Command {
	return &cli.Command{
		Name:  "health",
		Usage: "check Order Service and cart store availability",
		Action: func(c *cli.Context) error {
			return r.withSession(c, func(s *app.Session) error {
				report := s.Health.Run(c.Context)
				enc := json.NewEncoder(r.out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(report); err != nil {
					return err
				}
				if report.Status == healthcheck.StatusUnhealthy {
					return errors.New("storefront dependencies are unhealthy")
				}
				return nil
			})
		},
	}
}

func productIDArg(c *cli.Context, pos int) (int64, error) {
	id, err := strconv.ParseInt(c.Args().Get(pos), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: product id must be a positive integer", errUsage)
	}
	return id, nil
}

// parseOrderID принимает 7, ORD-0007 или TX-0007.
func parseOrderID(raw string) (domain.OrderID, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))
	for _, prefix := range []string{domain.ReferencePrefixOrder + "-", domain.ReferencePrefixTransaction + "-"} {
		raw = strings.TrimPrefix(raw, prefix)
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: order id must look like 7 or ORD-0007", errUsage)
	}
	return domain.OrderID(id), nil
}
