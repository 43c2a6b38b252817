// Copyright (c) 2025 Neomantra Corp

package hydra_test

import (
	"github.com/NimbleMarkets/hydra-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Asset", func() {
	Context("loading", func() {
		It("should load a fixture bar file", func() {
			asset, err := loadTestAsset(test1FilePath, "asset1")
			Expect(err).To(BeNil())
			Expect(asset.Rows()).To(Equal(4))
			Expect(asset.Cols()).To(Equal(2))
		})

		It("should read features by column and row offset", func() {
			asset, err := loadTestAsset(test1FilePath, "asset1")
			Expect(err).To(BeNil())

			value, err := asset.Get("CLOSE", 0)
			Expect(err).To(BeNil())
			Expect(value).To(Equal(101.0))

			value, err = asset.Get("OPEN", 3)
			Expect(err).To(BeNil())
			Expect(value).To(Equal(105.0))
		})

		It("should fail on unknown columns and out-of-range offsets", func() {
			asset, err := loadTestAsset(test1FilePath, "asset1")
			Expect(err).To(BeNil())

			_, err = asset.Get("VOLUME", 0)
			Expect(err).To(MatchError(hydra.ErrUnknownColumn))

			_, err = asset.Get("CLOSE", 99)
			Expect(err).To(MatchError(hydra.ErrRowOutOfRange))

			_, err = asset.Get("CLOSE", -1)
			Expect(err).To(MatchError(hydra.ErrRowOutOfRange))
		})

		It("should reject malformed loads", func() {
			asset := hydra.NewAsset("bad", testExchangeID, testBrokerID, 0)
			err := asset.LoadData([]float64{1, 2}, []int64{1}, 1, 2, false)
			Expect(err).To(MatchError(hydra.ErrNoHeaders))

			Expect(asset.LoadHeaders([]string{"OPEN", "CLOSE"})).To(BeNil())

			err = asset.LoadData([]float64{1, 2, 3}, []int64{1, 2}, 2, 2, false)
			Expect(err).To(MatchError(hydra.ErrShapeMismatch))

			err = asset.LoadData([]float64{1, 2, 3, 4}, []int64{2, 1}, 2, 2, false)
			Expect(err).To(MatchError(hydra.ErrNonMonotonicIndex))

			err = asset.LoadData([]float64{1, 2, 3, 4}, []int64{1, 2}, 2, 2, false)
			Expect(err).To(BeNil())

			err = asset.LoadHeaders([]string{"OPEN", "CLOSE"})
			Expect(err).To(MatchError(hydra.ErrHeadersLoaded))

			err = asset.LoadData([]float64{1, 2, 3, 4}, []int64{1, 2}, 2, 2, false)
			Expect(err).To(MatchError(hydra.ErrDataLoaded))
		})

		It("should reject duplicate column names", func() {
			asset := hydra.NewAsset("bad", testExchangeID, testBrokerID, 0)
			err := asset.LoadHeaders([]string{"OPEN", "OPEN"})
			Expect(err).To(MatchError(hydra.ErrDuplicateID))
		})

		It("should reject a header count that does not match the columns", func() {
			asset := hydra.NewAsset("bad", testExchangeID, testBrokerID, 0)
			Expect(asset.LoadHeaders([]string{"OPEN"})).To(BeNil())
			err := asset.LoadData([]float64{1, 2, 3, 4}, []int64{1, 2}, 2, 2, false)
			Expect(err).To(MatchError(hydra.ErrHeaderMismatch))
		})
	})

	Context("view data", func() {
		It("should borrow the caller's storage when loaded as a view", func() {
			values := []float64{100, 101, 102, 103}
			timestamps := []int64{1, 2}

			asset := hydra.NewAsset("view", testExchangeID, testBrokerID, 0)
			Expect(asset.LoadHeaders([]string{"OPEN", "CLOSE"})).To(BeNil())
			Expect(asset.LoadData(values, timestamps, 2, 2, true)).To(BeNil())
			Expect(asset.IsView()).To(BeTrue())

			values[1] = 500
			value, err := asset.Get("CLOSE", 0)
			Expect(err).To(BeNil())
			Expect(value).To(Equal(500.0))
		})

		It("should copy the caller's storage when not a view", func() {
			values := []float64{100, 101, 102, 103}
			timestamps := []int64{1, 2}

			asset := hydra.NewAsset("owned", testExchangeID, testBrokerID, 0)
			Expect(asset.LoadHeaders([]string{"OPEN", "CLOSE"})).To(BeNil())
			Expect(asset.LoadData(values, timestamps, 2, 2, false)).To(BeNil())
			Expect(asset.IsView()).To(BeFalse())

			values[1] = 500
			value, err := asset.Get("CLOSE", 0)
			Expect(err).To(BeNil())
			Expect(value).To(Equal(101.0))
		})
	})

	Context("identity", func() {
		It("should be shared by reference with the exchange, never cloned", func() {
			asset, err := loadTestAsset(test1FilePath, test1AssetID)
			Expect(err).To(BeNil())

			exchange := hydra.NewExchange(testExchangeID)
			Expect(exchange.RegisterAsset(asset)).To(BeNil())

			registered, err := exchange.GetAsset(test1AssetID)
			Expect(err).To(BeNil())
			Expect(registered).To(BeIdenticalTo(asset))
		})
	})
})
